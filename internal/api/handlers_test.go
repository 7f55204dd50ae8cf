package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiyanhack13/geopressci-realtime/internal/api"
	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/internal/fakes"
	"github.com/saiyanhack13/geopressci-realtime/internal/realtime"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

type stubStats struct {
	stats realtime.Stats
}

func (s *stubStats) Stats() realtime.Stats { return s.stats }

func setupAPI(t *testing.T) (*api.API, *fakes.EventProducer, *stubStats) {
	t.Helper()
	producer := fakes.NewEventProducer()
	stats := &stubStats{stats: realtime.Stats{
		Connections: 3,
		OnlineUsers: 2,
		Rooms:       4,
		RoomMembers: map[string]int{"global": 2},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewAPI(producer, stats, logger), producer, stats
}

func request(t *testing.T, method, target string, body any, id *auth.Identity) *http.Request {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reqBody)
	if id != nil {
		req = req.WithContext(auth.ContextWithIdentity(context.Background(), *id))
	}
	return req
}

func adminIdentity() *auth.Identity {
	return &auth.Identity{UserID: "order-service", Role: presence.RoleAdmin}
}

func TestNewOrderHandler(t *testing.T) {
	order := presence.Order{
		ID:         "order-1",
		Reference:  "GP-2024-001",
		CustomerID: "cust-1",
		PressingID: "press-1",
		Status:     "pending",
	}

	t.Run("Success - publishes a new_order event", func(t *testing.T) {
		handler, producer, _ := setupAPI(t)

		req := request(t, http.MethodPost, "/api/notify/new-order",
			map[string]any{"order": order}, adminIdentity())
		rec := httptest.NewRecorder()

		handler.NewOrderHandler(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		published := producer.Published()
		require.Len(t, published, 1)
		assert.Equal(t, presence.EventNewOrder, published[0].Type)
		assert.Equal(t, "order-1", published[0].Order.ID)
		assert.NotEmpty(t, published[0].ID)
		assert.False(t, published[0].OccurredAt.IsZero())
	})

	t.Run("Failure - no identity", func(t *testing.T) {
		handler, producer, _ := setupAPI(t)

		req := request(t, http.MethodPost, "/api/notify/new-order",
			map[string]any{"order": order}, nil)
		rec := httptest.NewRecorder()

		handler.NewOrderHandler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, producer.Published())
	})

	t.Run("Failure - non-admin caller", func(t *testing.T) {
		handler, producer, _ := setupAPI(t)

		id := &auth.Identity{UserID: "press-1", Role: presence.RolePressing}
		req := request(t, http.MethodPost, "/api/notify/new-order",
			map[string]any{"order": order}, id)
		rec := httptest.NewRecorder()

		handler.NewOrderHandler(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, producer.Published())
	})

	t.Run("Failure - malformed body", func(t *testing.T) {
		handler, producer, _ := setupAPI(t)

		req := httptest.NewRequest(http.MethodPost, "/api/notify/new-order",
			bytes.NewReader([]byte("{nope")))
		req = req.WithContext(auth.ContextWithIdentity(context.Background(), *adminIdentity()))
		rec := httptest.NewRecorder()

		handler.NewOrderHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, producer.Published())
	})

	t.Run("Failure - order missing participants", func(t *testing.T) {
		handler, producer, _ := setupAPI(t)

		req := request(t, http.MethodPost, "/api/notify/new-order",
			map[string]any{"order": presence.Order{ID: "order-1"}}, adminIdentity())
		rec := httptest.NewRecorder()

		handler.NewOrderHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, producer.Published())
	})
}

func TestOrderStatusHandler(t *testing.T) {
	handler, producer, _ := setupAPI(t)

	body := map[string]any{
		"order": presence.Order{
			ID:         "order-1",
			CustomerID: "cust-1",
			PressingID: "press-1",
			Status:     "ready",
		},
		"previousStatus": "processing",
	}
	req := request(t, http.MethodPost, "/api/notify/order-status", body, adminIdentity())
	rec := httptest.NewRecorder()

	handler.OrderStatusHandler(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	published := producer.Published()
	require.Len(t, published, 1)
	assert.Equal(t, presence.EventOrderStatusUpdate, published[0].Type)
	assert.Equal(t, "processing", published[0].PreviousStatus)
	assert.Equal(t, "ready", published[0].Order.Status)
}

func TestStatsHandler(t *testing.T) {
	t.Run("Success - returns the registry snapshot", func(t *testing.T) {
		handler, _, stats := setupAPI(t)

		req := request(t, http.MethodGet, "/api/stats", nil, adminIdentity())
		rec := httptest.NewRecorder()

		handler.StatsHandler(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got realtime.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, stats.stats, got)
	})

	t.Run("Failure - no identity", func(t *testing.T) {
		handler, _, _ := setupAPI(t)

		req := request(t, http.MethodGet, "/api/stats", nil, nil)
		rec := httptest.NewRecorder()

		handler.StatsHandler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
