package pubsub_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	ps "github.com/saiyanhack13/geopressci-realtime/internal/platform/pubsub"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

func TestProducer_Publish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	// Arrange: Set up the v2 pstest in-memory server
	srv := pstest.NewServer()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	const projectID = "test-project"
	const topicID = "test-topic"
	const subID = "test-sub"

	// Create the client with context.Background() to prevent a cleanup race
	// with the test's timeout context.
	client, err := pubsub.NewClient(context.Background(), projectID, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  subName,
		Topic: topicName,
	})
	require.NoError(t, err)

	topic := client.Publisher(topicID)
	producer := ps.NewProducer(topic)

	event := &presence.OrderEvent{
		ID:   "evt-1",
		Type: presence.EventNewOrder,
		Order: presence.Order{
			ID:         "order-1",
			CustomerID: "cust-1",
			PressingID: "press-1",
			Status:     "pending",
		},
		OccurredAt: time.Now().UTC().Truncate(time.Second),
	}

	// Act: Publish the event using our producer
	err = producer.Publish(ctx, event)
	require.NoError(t, err)

	// Assert: Verify the message was received by the in-memory server
	var wg sync.WaitGroup
	wg.Add(1)
	var receivedMsg *pubsub.Message

	sub := client.Subscriber(subID)
	go func() {
		defer wg.Done()
		receiveCtx, cancelReceive := context.WithCancel(ctx)
		defer cancelReceive()

		err := sub.Receive(receiveCtx, func(ctx context.Context, msg *pubsub.Message) {
			msg.Ack()
			receivedMsg = msg
			cancelReceive()
		})
		if err != nil && err != context.Canceled {
			t.Errorf("Receive returned an unexpected error: %v", err)
		}
	}()

	wg.Wait()

	require.NotNil(t, receivedMsg, "Did not receive a message from the subscription")
	assert.Equal(t, string(presence.EventNewOrder), receivedMsg.Attributes["event_type"])

	var receivedEvent presence.OrderEvent
	err = json.Unmarshal(receivedMsg.Data, &receivedEvent)
	require.NoError(t, err)
	assert.Equal(t, *event, receivedEvent)
}
