package push_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiyanhack13/geopressci-realtime/internal/fakes"
	"github.com/saiyanhack13/geopressci-realtime/internal/platform/push"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// recordingProducer captures the MessageData handed to Publish.
type recordingProducer struct {
	mu        sync.Mutex
	published []messagepipeline.MessageData
	err       error
}

func (p *recordingProducer) Publish(_ context.Context, data messagepipeline.MessageData) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, data)
	return data.ID, nil
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSender(t *testing.T) {
	store := fakes.NewSubscriptionStore()

	_, err := push.NewSender(nil, store, nopLogger())
	assert.Error(t, err)

	_, err = push.NewSender(&recordingProducer{}, nil, nopLogger())
	assert.Error(t, err)

	sender, err := push.NewSender(&recordingProducer{}, store, nopLogger())
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestSender_SendTemplated(t *testing.T) {
	ctx := context.Background()

	sub := presence.PushSubscription{
		Endpoint: "https://push.example.com/send/abc",
		Keys:     map[string]string{"p256dh": "key", "auth": "secret"},
	}

	t.Run("Success - publishes one command for all subscriptions", func(t *testing.T) {
		producer := &recordingProducer{}
		store := fakes.NewSubscriptionStore()
		require.NoError(t, store.Save(ctx, "cust-1", presence.RoleClient, &sub))
		second := sub
		second.Endpoint = "https://push.example.com/send/def"
		require.NoError(t, store.Save(ctx, "cust-1", presence.RoleClient, &second))

		sender, err := push.NewSender(producer, store, nopLogger())
		require.NoError(t, err)

		err = sender.SendTemplated(ctx, "new_order", "cust-1", map[string]string{"orderId": "order-1"})
		require.NoError(t, err)

		require.Len(t, producer.published, 1)
		assert.NotEmpty(t, producer.published[0].ID)

		var command struct {
			Template      string                      `json:"template"`
			UserID        string                      `json:"userId"`
			Data          map[string]string           `json:"data"`
			Subscriptions []presence.PushSubscription `json:"subscriptions"`
		}
		require.NoError(t, json.Unmarshal(producer.published[0].Payload, &command))
		assert.Equal(t, "new_order", command.Template)
		assert.Equal(t, "cust-1", command.UserID)
		assert.Equal(t, map[string]string{"orderId": "order-1"}, command.Data)
		assert.Len(t, command.Subscriptions, 2)
	})

	t.Run("Success - no subscriptions publishes nothing", func(t *testing.T) {
		producer := &recordingProducer{}
		sender, err := push.NewSender(producer, fakes.NewSubscriptionStore(), nopLogger())
		require.NoError(t, err)

		err = sender.SendTemplated(ctx, "new_order", "cust-unknown", nil)
		require.NoError(t, err)
		assert.Empty(t, producer.published)
	})

	t.Run("Failure - store error is propagated", func(t *testing.T) {
		producer := &recordingProducer{}
		store := fakes.NewSubscriptionStore()
		store.FetchErr = errors.New("backend unavailable")

		sender, err := push.NewSender(producer, store, nopLogger())
		require.NoError(t, err)

		err = sender.SendTemplated(ctx, "new_order", "cust-1", nil)
		assert.Error(t, err)
		assert.Empty(t, producer.published)
	})

	t.Run("Failure - publish error is propagated", func(t *testing.T) {
		producer := &recordingProducer{err: errors.New("topic gone")}
		store := fakes.NewSubscriptionStore()
		require.NoError(t, store.Save(ctx, "cust-1", presence.RoleClient, &sub))

		sender, err := push.NewSender(producer, store, nopLogger())
		require.NoError(t, err)

		err = sender.SendTemplated(ctx, "new_order", "cust-1", nil)
		assert.Error(t, err)
	})
}
