// Package api defines the HTTP handlers of the realtime service: domain
// event ingestion for the order services and a read-only stats endpoint for
// ops tooling.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/internal/realtime"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// StatsSource exposes the hub's registry snapshot.
type StatsSource interface {
	Stats() realtime.Stats
}

// API holds the dependencies for the stateless HTTP handlers.
type API struct {
	producer presence.EventProducer
	stats    StatsSource
	logger   *slog.Logger
}

// NewAPI creates a new, stateless API handler.
func NewAPI(producer presence.EventProducer, stats StatsSource, logger *slog.Logger) *API {
	return &API{
		producer: producer,
		stats:    stats,
		logger:   logger,
	}
}

// newOrderRequest is the body accepted by NewOrderHandler.
type newOrderRequest struct {
	Order presence.Order `json:"order"`
}

// orderStatusRequest is the body accepted by OrderStatusHandler.
type orderStatusRequest struct {
	Order          presence.Order `json:"order"`
	PreviousStatus string         `json:"previousStatus"`
}

// NewOrderHandler ingests a new-order event and publishes it to the event
// topic; the pipeline performs the actual fan-out asynchronously.
func (a *API) NewOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := a.requireServiceCaller(w, r, "NewOrderHandler")
	if !ok {
		return
	}
	log := a.logger.With("caller", id.UserID)

	var body newOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Warn("Failed to decode new-order body", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event := &presence.OrderEvent{
		ID:         uuid.NewString(),
		Type:       presence.EventNewOrder,
		Order:      body.Order,
		OccurredAt: time.Now().UTC(),
	}
	a.publish(w, log, r, event)
}

// OrderStatusHandler ingests an order-status-update event.
func (a *API) OrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := a.requireServiceCaller(w, r, "OrderStatusHandler")
	if !ok {
		return
	}
	log := a.logger.With("caller", id.UserID)

	var body orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Warn("Failed to decode order-status body", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	event := &presence.OrderEvent{
		ID:             uuid.NewString(),
		Type:           presence.EventOrderStatusUpdate,
		Order:          body.Order,
		PreviousStatus: body.PreviousStatus,
		OccurredAt:     time.Now().UTC(),
	}
	a.publish(w, log, r, event)
}

// StatsHandler serves the read-only registry snapshot: open connections,
// distinct online users, and per-room member counts.
func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		a.logger.Warn("StatsHandler: no identity in context")
		response.WriteJSONError(w, http.StatusUnauthorized, "missing authentication token")
		return
	}
	response.WriteJSON(w, http.StatusOK, a.stats.Stats())
}

func (a *API) publish(w http.ResponseWriter, log *slog.Logger, r *http.Request, event *presence.OrderEvent) {
	if err := event.Validate(); err != nil {
		log.Warn("Rejected invalid order event", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.producer.Publish(r.Context(), event); err != nil {
		log.Error("Failed to publish order event", "event", event.Type, "order", event.Order.ID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to accept event")
		return
	}

	log.Debug("Order event accepted for fan-out", "event", event.Type, "order", event.Order.ID)
	response.WriteJSON(w, http.StatusAccepted, nil)
}

// requireServiceCaller gates the ingestion endpoints: only the marketplace
// services (authenticated with an admin-role token) may inject events.
func (a *API) requireServiceCaller(w http.ResponseWriter, r *http.Request, handler string) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.logger.Warn("No identity in context", "handler", handler)
		response.WriteJSONError(w, http.StatusUnauthorized, "missing authentication token")
		return auth.Identity{}, false
	}
	if id.Role != presence.RoleAdmin {
		a.logger.Warn("Non-admin caller rejected from ingestion endpoint", "handler", handler, "caller", id.UserID)
		response.WriteJSONError(w, http.StatusForbidden, "insufficient permissions")
		return auth.Identity{}, false
	}
	return id, true
}
