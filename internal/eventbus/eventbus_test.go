package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
)

// collector собирает доставленные события
type collector struct {
	mu   sync.Mutex
	evs  []*Envelope
	recv chan struct{}
}

func newCollector() *collector {
	return &collector{recv: make(chan struct{}, 64)}
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.evs = append(c.evs, ev)
	c.mu.Unlock()
	c.recv <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []*Envelope {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.recv:
		case <-time.After(2 * time.Second):
			t.Fatalf("получено %d событий из %d", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Envelope(nil), c.evs...)
}

func TestPublishSubscribeWithFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	all, destroyed := newCollector(), newCollector()
	_, err := bus.Subscribe(context.Background(), Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Types: []string{"BlockDestroyed"}}, destroyed.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "ItemDrop", Source: "w"}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "BlockDestroyed", Source: "w"}))

	got := all.wait(t, 2)
	assert.Equal(t, "ItemDrop", got[0].EventType, "порядок доставки сохраняется")
	assert.Equal(t, "BlockDestroyed", got[1].EventType)

	only := destroyed.wait(t, 1)
	assert.Len(t, only, 1)
	assert.Equal(t, "BlockDestroyed", only[0].EventType)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus(4)

	c := newCollector()
	sub, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "ItemDrop"}))
	bus.Close()

	assert.Empty(t, c.evs)
	assert.Equal(t, uint64(1), bus.Metrics().Published)
	assert.Zero(t, bus.Metrics().Consumed)
}

func TestFullBufferDropsLowPriority(t *testing.T) {
	// Шина без цикла рассылки: буфер не освобождается
	mb := newMemoryBus(1)

	ctx := context.Background()
	require.NoError(t, mb.Publish(ctx, &Envelope{Priority: PriorityLow}))
	require.NoError(t, mb.Publish(ctx, &Envelope{Priority: PriorityNormal}))

	stats := mb.Metrics()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.InFlight)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err := mb.Publish(cctx, &Envelope{Priority: PriorityCritical})
	assert.ErrorIs(t, err, context.Canceled, "высокий приоритет ждёт места до отмены контекста")
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewMemoryBus(1)
	bus.Close()
	bus.Close()
	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrBusClosed)
}

func TestWorldSinkWrapsEvents(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	c := newCollector()
	_, err := bus.Subscribe(context.Background(), Filter{Sources: []string{"world-1"}}, c.handle)
	require.NoError(t, err)

	sink := NewWorldSink(bus, "world-1")
	ev := world.BlockDestroyedEvent{Tile: vec.Vec2{X: 3, Y: -2}, Layer: world.LayerFront, Block: 2}
	sink.Emit(ev)
	sink.Emit(world.BlockPlacedEvent{Tiles: []vec.Vec2{{X: 1, Y: 1}}, Block: 2})

	got := c.wait(t, 2)
	env := got[0]
	_, err = uuid.Parse(env.ID)
	assert.NoError(t, err, "ID должен быть UUID")
	assert.Equal(t, "world-1", env.Source)
	assert.Equal(t, "BlockDestroyed", env.EventType)
	assert.Equal(t, PriorityNormal, env.Priority)
	assert.Equal(t, ev, env.Payload)
	assert.Equal(t, time.UTC, env.Timestamp.Location())

	assert.Equal(t, "BlockPlaced", got[1].EventType)
	assert.Equal(t, PriorityLow, got[1].Priority)
	assert.NotEqual(t, env.ID, got[1].ID)
}

func TestMultiSinkPreservesOrder(t *testing.T) {
	var order []string
	first := world.EventSinkFunc(func(ev world.Event) { order = append(order, "first:"+ev.GetType().String()) })
	second := world.EventSinkFunc(func(ev world.Event) { order = append(order, "second:"+ev.GetType().String()) })

	MultiSink{first, second}.Emit(world.ItemDropEvent{Item: 1, Count: 1})
	assert.Equal(t, []string{"first:ItemDrop", "second:ItemDrop"}, order)
}

// stubStats отдаёт заданную статистику
type stubStats struct {
	EventBus
	stats Stats
}

func (s *stubStats) Metrics() Stats { return s.stats }

func TestMetricsExporterCountsDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := &stubStats{stats: Stats{Published: 5, Consumed: 3, Dropped: 1, InFlight: 2}}
	me := NewMetricsExporter(bus, reg)

	me.Collect()
	assert.Equal(t, 5.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 3.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(me.dropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(me.inflight))

	bus.stats = Stats{Published: 7, Consumed: 7, Dropped: 1}
	me.Collect()
	assert.Equal(t, 7.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 7.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(me.dropped))
	assert.Zero(t, testutil.ToFloat64(me.inflight))

	me.Start(time.Hour)
	me.Stop()
}
