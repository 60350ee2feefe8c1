package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concur/pkg/platform/audit"
)

type fakeProducer struct {
	mu      sync.Mutex
	topics  []string
	keys    []string
	values  [][]byte
	failErr error
}

func (f *fakeProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
	return nil
}

func TestMemoryStoreAppends(t *testing.T) {
	store := audit.NewMemoryStore()

	e1 := audit.NewEvent(audit.ActionSubmitted, "dp-1", "df-1", "agr-1")
	e2 := audit.NewEvent(audit.ActionRevoked, "dp-1", "df-1", "agr-1")
	e2.PurposeID = "marketing"

	require.NoError(t, store.Publish(context.Background(), e1))
	require.NoError(t, store.Publish(context.Background(), e2))

	events := store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionSubmitted, events[0].Action)
	assert.Equal(t, "marketing", events[1].PurposeID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestKafkaPublisherKeysByPair(t *testing.T) {
	producer := &fakeProducer{}
	publisher := audit.NewKafkaPublisher(producer, "")

	event := audit.NewEvent(audit.ActionRegranted, "dp-1", "df-1", "agr-2")
	event.PurposeID = "marketing"
	require.NoError(t, publisher.Publish(context.Background(), event))

	require.Len(t, producer.values, 1)
	assert.Equal(t, audit.DefaultTopic, producer.topics[0])
	assert.Equal(t, "dp-1|df-1", producer.keys[0])

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(producer.values[0], &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, audit.ActionRegranted, decoded.Action)
	assert.Equal(t, "marketing", decoded.PurposeID)
}

func TestKafkaPublisherSurfacesProduceError(t *testing.T) {
	producer := &fakeProducer{failErr: errors.New("broker unavailable")}
	publisher := audit.NewKafkaPublisher(producer, "audit.custom")

	err := publisher.Publish(context.Background(), audit.NewEvent(audit.ActionSubmitted, "dp-1", "df-1", "agr-1"))
	assert.ErrorContains(t, err, "broker unavailable")
}

func TestWorkerDrainsInboxToSink(t *testing.T) {
	store := audit.NewMemoryStore()
	inbox := make(chan audit.Event, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	worker := audit.NewWorker(store, inbox, nil)
	go func() { done <- worker.Run(ctx) }()

	for i := 0; i < 3; i++ {
		inbox <- audit.NewEvent(audit.ActionSubmitted, "dp-1", "df-1", "agr-1")
	}

	assert.Eventually(t, func() bool {
		return len(store.Events()) == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerDrainsBufferedEventsOnShutdown(t *testing.T) {
	store := audit.NewMemoryStore()
	inbox := make(chan audit.Event, 8)
	inbox <- audit.NewEvent(audit.ActionSubmitted, "dp-1", "df-1", "agr-1")
	inbox <- audit.NewEvent(audit.ActionRevoked, "dp-1", "df-1", "agr-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := audit.NewWorker(store, inbox, nil)
	err := worker.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, store.Events(), 2)
}
