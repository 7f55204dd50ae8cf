// Package fakes provides in-memory test doubles (fakes) for the service's
// dependencies. These are used in the local cmd entrypoint and in
// integration tests.
package fakes

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/rs/zerolog"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// --- Consumer ---

type InMemoryConsumer struct {
	outputChan chan messagepipeline.Message
	logger     zerolog.Logger
	stopOnce   sync.Once
	doneChan   chan struct{}
}

func NewInMemoryConsumer(bufferSize int, logger zerolog.Logger) *InMemoryConsumer {
	return &InMemoryConsumer{
		outputChan: make(chan messagepipeline.Message, bufferSize),
		logger:     logger.With().Str("component", "InMemoryConsumer").Logger(),
		doneChan:   make(chan struct{}),
	}
}
func (c *InMemoryConsumer) Publish(msg messagepipeline.Message) {
	select {
	case c.outputChan <- msg:
	case <-c.doneChan:
	}
}
func (c *InMemoryConsumer) Messages() <-chan messagepipeline.Message { return c.outputChan }
func (c *InMemoryConsumer) Start(_ context.Context) error            { return nil }
func (c *InMemoryConsumer) Stop(_ context.Context) error {
	c.stopOnce.Do(func() {
		close(c.doneChan)
		close(c.outputChan)
	})
	return nil
}
func (c *InMemoryConsumer) Done() <-chan struct{} { return c.doneChan }

// --- Event producer ---

// EventProducer records published order events for assertion.
type EventProducer struct {
	mu        sync.Mutex
	published []*presence.OrderEvent
}

func NewEventProducer() *EventProducer { return &EventProducer{} }

func (p *EventProducer) Publish(_ context.Context, event *presence.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

// Published returns a snapshot of everything published so far.
func (p *EventProducer) Published() []*presence.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*presence.OrderEvent, len(p.published))
	copy(out, p.published)
	return out
}

// --- Push sender ---

// SentPush records a single SendTemplated call.
type SentPush struct {
	Template string
	UserID   string
	Data     map[string]string
}

// PushSender records templated push requests instead of delivering them.
type PushSender struct {
	mu   sync.Mutex
	sent []SentPush
	// Err, when set, is returned from every SendTemplated call.
	Err error
}

func NewPushSender() *PushSender { return &PushSender{} }

func (p *PushSender) SendTemplated(_ context.Context, template string, userID string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.sent = append(p.sent, SentPush{Template: template, UserID: userID, Data: data})
	return nil
}

// Sent returns a snapshot of the recorded push requests.
func (p *PushSender) Sent() []SentPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentPush, len(p.sent))
	copy(out, p.sent)
	return out
}

// --- Subscription store ---

// SubscriptionStore keeps push subscriptions in a map, endpoint-keyed per
// user like the real backends.
type SubscriptionStore struct {
	mu   sync.Mutex
	subs map[string]map[string]presence.PushSubscription
	// FetchErr, when set, is returned from every Fetch call.
	FetchErr error
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{subs: make(map[string]map[string]presence.PushSubscription)}
}

func (s *SubscriptionStore) Save(_ context.Context, userID string, _ presence.Role, sub *presence.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[string]presence.PushSubscription)
	}
	s.subs[userID][sub.Endpoint] = *sub
	return nil
}

func (s *SubscriptionStore) Fetch(_ context.Context, userID string) ([]presence.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	byEndpoint := s.subs[userID]
	if len(byEndpoint) == 0 {
		return nil, nil
	}
	out := make([]presence.PushSubscription, 0, len(byEndpoint))
	for _, sub := range byEndpoint {
		out = append(out, sub)
	}
	return out, nil
}

func (s *SubscriptionStore) Close() error { return nil }
