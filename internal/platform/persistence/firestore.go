// Package persistence holds the durable backends for push subscriptions.
// A user's browser subscriptions must outlive any single websocket
// connection, so they live in Firestore or Redis rather than in the hub.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// subscriptionDoc is the wrapper struct we store in Firestore, one document
// per user keyed by user ID.
type subscriptionDoc struct {
	Role          string                      `firestore:"role"`
	Subscriptions []presence.PushSubscription `firestore:"subscriptions"`
	UpdatedAt     time.Time                   `firestore:"updated_at"`
}

// FirestoreSubscriptionStore implements the presence.SubscriptionStore
// interface using Google Cloud Firestore.
type FirestoreSubscriptionStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreSubscriptionStore is the constructor for the Firestore-backed store.
func NewFirestoreSubscriptionStore(client *firestore.Client, collection string, logger *slog.Logger) (*FirestoreSubscriptionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	return &FirestoreSubscriptionStore{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "firestore_subscription_store"),
	}, nil
}

// Save adds a subscription to the user's document, creating the document on
// first use. Re-registering an endpoint replaces the stored keys for it, so
// a refreshed browser subscription does not accumulate duplicates.
func (s *FirestoreSubscriptionStore) Save(ctx context.Context, userID string, role presence.Role, sub *presence.PushSubscription) error {
	docRef := s.client.Collection(s.collection).Doc(userID)

	// Read-modify-write inside a transaction to keep concurrent multi-tab
	// registrations from clobbering each other.
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var doc subscriptionDoc
		snap, err := tx.Get(docRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}

		doc.Role = string(role)
		doc.UpdatedAt = time.Now().UTC()

		replaced := false
		for i, existing := range doc.Subscriptions {
			if existing.Endpoint == sub.Endpoint {
				doc.Subscriptions[i] = *sub
				replaced = true
				break
			}
		}
		if !replaced {
			doc.Subscriptions = append(doc.Subscriptions, *sub)
		}

		return tx.Set(docRef, &doc)
	})
	if err != nil {
		return fmt.Errorf("failed to save push subscription for %s: %w", userID, err)
	}

	s.logger.Debug("Saved push subscription", "user_id", userID, "endpoint", sub.Endpoint)
	return nil
}

// Fetch returns all subscriptions registered for the user. A user with no
// document simply has no subscriptions.
func (s *FirestoreSubscriptionStore) Fetch(ctx context.Context, userID string) ([]presence.PushSubscription, error) {
	snap, err := s.client.Collection(s.collection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch push subscriptions for %s: %w", userID, err)
	}

	var doc subscriptionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription document for %s: %w", userID, err)
	}
	return doc.Subscriptions, nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreSubscriptionStore) Close() error {
	return s.client.Close()
}
