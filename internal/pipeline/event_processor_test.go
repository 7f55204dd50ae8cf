package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiyanhack13/geopressci-realtime/internal/fakes"
	"github.com/saiyanhack13/geopressci-realtime/internal/notify"
	"github.com/saiyanhack13/geopressci-realtime/internal/pipeline"
	"github.com/saiyanhack13/geopressci-realtime/internal/realtime"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// recordingRouter captures which rooms each envelope type was routed to.
type recordingRouter struct {
	mu    sync.Mutex
	rooms map[string][]string // envelope type -> rooms
}

func newRecordingRouter() *recordingRouter {
	return &recordingRouter{rooms: make(map[string][]string)}
}

func (r *recordingRouter) SendToUser(string, *realtime.Envelope) bool { return true }

func (r *recordingRouter) SendToRoom(roomID string, env *realtime.Envelope, _ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[env.Type] = append(r.rooms[env.Type], roomID)
	return 1
}

func (r *recordingRouter) roomsFor(envType string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rooms[envType]...)
}

func setupProcessor(t *testing.T) (messagepipeline.StreamProcessor[presence.OrderEvent], *recordingRouter) {
	t.Helper()
	router := newRecordingRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier, err := notify.NewNotifier(router, fakes.NewPushSender(), logger)
	require.NoError(t, err)
	return pipeline.NewEventProcessor(notifier, logger), router
}

func processorEvent(eventType presence.EventType) *presence.OrderEvent {
	return &presence.OrderEvent{
		ID:   "evt-1",
		Type: eventType,
		Order: presence.Order{
			ID:         "order-1",
			CustomerID: "cust-1",
			PressingID: "press-1",
			Status:     "pending",
		},
		PreviousStatus: "created",
	}
}

func TestEventProcessor_NewOrder(t *testing.T) {
	processor, router := setupProcessor(t)

	err := processor(context.Background(), messagepipeline.Message{}, processorEvent(presence.EventNewOrder))
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"pressing_press-1", realtime.RoomAdmins},
		router.roomsFor(realtime.TypeNewOrder))
}

func TestEventProcessor_OrderStatusUpdate(t *testing.T) {
	processor, router := setupProcessor(t)

	err := processor(context.Background(), messagepipeline.Message{}, processorEvent(presence.EventOrderStatusUpdate))
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"client_cust-1", "pressing_press-1", realtime.RoomAdmins},
		router.roomsFor(realtime.TypeOrderStatusUpdate))
}

func TestEventProcessor_UnhandledType(t *testing.T) {
	processor, _ := setupProcessor(t)

	err := processor(context.Background(), messagepipeline.Message{}, processorEvent("order_archived"))
	assert.Error(t, err)
}
