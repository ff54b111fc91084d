package eventbus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/survival-game/internal/world"
)

// WorldSink публикует события мира в шину. Реализует world.EventSink.
// События мира идут с приоритетом ниже PriorityHigh, поэтому Emit не блокирует
// игровой цикл: при заполненном буфере событие отбрасывается.
type WorldSink struct {
	bus    EventBus
	source string
}

// NewWorldSink создаёт адаптер с именем источника source
func NewWorldSink(bus EventBus, source string) *WorldSink {
	return &WorldSink{bus: bus, source: source}
}

// Emit заворачивает событие в Envelope и публикует его
func (s *WorldSink) Emit(ev world.Event) {
	_ = s.bus.Publish(context.Background(), Wrap(s.source, ev))
}

// Wrap строит Envelope для события мира
func Wrap(source string, ev world.Event) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: ev.GetType().String(),
		Priority:  priorityOf(ev.GetType()),
		Payload:   ev,
	}
}

func priorityOf(t world.EventType) int {
	switch t {
	case world.EventTypeBlockPlaced:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// MultiSink рассылает событие нескольким приёмникам по порядку
type MultiSink []world.EventSink

// Emit вызывает Emit каждого приёмника
func (m MultiSink) Emit(ev world.Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}
