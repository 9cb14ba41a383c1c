package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydroguard/internal/analytics"
	"hydroguard/internal/cache"
	"hydroguard/internal/models"
)

type message struct {
	kind    string
	payload interface{}
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []message
}

func (f *fakeBroadcaster) Broadcast(kind string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message{kind: kind, payload: payload})
}

func (f *fakeBroadcaster) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.kind)
	}
	return out
}

// failingStore отклоняет любую запись
type failingStore struct {
	*cache.MemoryStore
}

func (failingStore) StoreDetection(context.Context, models.DetectionRecord) error {
	return errors.New("storage unavailable")
}

func detectionEvent(sector string, detected bool) Event {
	summary := models.Summary{Threshold: 0.5, Indices: []int{}, ExceedingLosses: []float64{}}
	if detected {
		loss := 0.9
		summary = models.Summary{
			Detected:        true,
			DetectedList:    1,
			Threshold:       0.5,
			Loss:            &loss,
			Indices:         []int{11},
			ExceedingLosses: []float64{0.9},
		}
	}
	return Event{Detection: &models.DetectionRecord{
		RunID:     "run-" + sector,
		SectorID:  sector,
		Timestamp: time.Now(),
		Rows:      12,
		Summary:   summary,
	}}
}

func triggerEvent(sector string, lowTds bool) Event {
	return Event{Triggers: &models.TriggerRecord{
		RunID:         "run-" + sector,
		SectorID:      sector,
		Timestamp:     time.Now(),
		Forecast:      map[string]float64{analytics.FeatureTDS: 400},
		TriggerStatus: map[string]bool{analytics.TriggerLowTds: lowTds, analytics.TriggerHighTds: false},
	}}
}

func TestRecorderPersistsAndBroadcasts(t *testing.T) {
	store := cache.NewMemoryStore(10, 0)
	hub := &fakeBroadcaster{}
	rec := New(store, hub, nil, 16)
	rec.Start(2)

	require.True(t, rec.Submit(detectionEvent("a", true)))
	require.True(t, rec.Submit(detectionEvent("b", false)))
	rec.Stop()

	anomalies, err := store.GetRecentAnomalies(context.Background(), "a", 10)
	require.NoError(t, err)
	assert.Len(t, anomalies, 1)

	none, err := store.GetRecentAnomalies(context.Background(), "b", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Equal(t, []string{MessageAnomaly}, hub.kinds())
	stats := rec.GetStats()
	assert.Equal(t, int64(2), stats["processed"])
	assert.Equal(t, int64(0), stats["dropped"])
	assert.Equal(t, 2, store.GetStats()["detections"])
}

func TestRecorderBroadcastsOnlyTriggerChanges(t *testing.T) {
	store := cache.NewMemoryStore(10, 0)
	hub := &fakeBroadcaster{}
	rec := New(store, hub, nil, 16)
	rec.Start(3)

	rec.Submit(triggerEvent("a", false))
	rec.Submit(triggerEvent("a", false))
	rec.Submit(triggerEvent("a", true))
	rec.Stop()

	assert.Equal(t, []string{MessageTriggers, MessageTriggers}, hub.kinds())

	last, err := store.GetTriggerStatus(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, last.TriggerStatus[analytics.TriggerLowTds])
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	rec := New(cache.NewMemoryStore(10, 0), nil, nil, 1)

	assert.True(t, rec.Submit(detectionEvent("a", false)))
	assert.False(t, rec.Submit(detectionEvent("a", false)))
	assert.Equal(t, int64(1), rec.GetStats()["dropped"])

	// события из очереди обрабатываются при остановке
	rec.Start(1)
	rec.Stop()
	assert.Equal(t, int64(1), rec.GetStats()["processed"])

	assert.False(t, rec.Submit(detectionEvent("a", false)))
	assert.Equal(t, int64(2), rec.GetStats()["dropped"])
}

func TestRecorderCountsFailures(t *testing.T) {
	rec := New(failingStore{cache.NewMemoryStore(10, 0)}, nil, nil, 4)
	rec.Start(1)
	rec.Submit(detectionEvent("a", true))
	rec.Stop()

	stats := rec.GetStats()
	assert.Equal(t, int64(1), stats["failed"])
	assert.Equal(t, int64(0), stats["processed"])
}

func TestRecorderStopIsIdempotent(t *testing.T) {
	rec := New(cache.NewMemoryStore(10, 0), nil, nil, 4)
	rec.Start(2)
	rec.Stop()
	rec.Stop()
}

func TestRecorderKeepsSectorOrder(t *testing.T) {
	store := cache.NewMemoryStore(10, 0)
	hub := &fakeBroadcaster{}
	rec := New(store, hub, nil, 512)
	rec.Start(4)

	sectors := []string{"a", "b", "c", "d", "e"}
	base := time.Now()
	for i := 0; i < 40; i++ {
		for _, sector := range sectors {
			ev := triggerEvent(sector, i%2 == 0)
			ev.Triggers.RunID = fmt.Sprintf("%s-%d", sector, i)
			ev.Triggers.Timestamp = base.Add(time.Duration(i) * time.Millisecond)
			require.True(t, rec.Submit(ev))
		}
	}
	rec.Stop()

	// статус переключается каждым событием, поэтому рассылается каждое
	broadcast := make(map[string][]string)
	hub.mu.Lock()
	for _, m := range hub.messages {
		tr := m.payload.(models.TriggerRecord)
		broadcast[tr.SectorID] = append(broadcast[tr.SectorID], tr.RunID)
	}
	hub.mu.Unlock()

	for _, sector := range sectors {
		want := make([]string, 40)
		for i := range want {
			want[i] = fmt.Sprintf("%s-%d", sector, i)
		}
		assert.Equal(t, want, broadcast[sector], sector)

		last, err := store.GetTriggerStatus(context.Background(), sector)
		require.NoError(t, err)
		assert.Equal(t, sector+"-39", last.RunID)
	}
}

func TestRecorderSubmitDuringStop(t *testing.T) {
	rec := New(cache.NewMemoryStore(10, 0), nil, nil, 10000)
	rec.Start(2)

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if rec.Submit(detectionEvent("a", false)) {
					accepted.Add(1)
				}
			}
		}()
	}
	rec.Stop()
	wg.Wait()

	// каждое принятое событие обработано, остальные учтены как отброшенные
	stats := rec.GetStats()
	assert.Equal(t, accepted.Load(), stats["processed"])
	assert.Equal(t, 800-accepted.Load(), stats["dropped"])
}
