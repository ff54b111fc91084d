package world

import (
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world/block"
)

// EventType определяет тип события мира
type EventType uint8

const (
	EventTypeItemDrop         EventType = iota + 1 // Выпадение предметов
	EventTypeBlockDestroyed                        // Блок разрушен добычей
	EventTypeBlockPlaced                           // Блоки поставлены
	EventTypeElementDestroyed                      // Статический объект разрушен
	EventTypeRenderReinit                          // Окно отрисовки нужно построить заново
)

// String возвращает имя типа события
func (t EventType) String() string {
	switch t {
	case EventTypeItemDrop:
		return "ItemDrop"
	case EventTypeBlockDestroyed:
		return "BlockDestroyed"
	case EventTypeBlockPlaced:
		return "BlockPlaced"
	case EventTypeElementDestroyed:
		return "ElementDestroyed"
	case EventTypeRenderReinit:
		return "RenderReinit"
	}
	return "Unknown"
}

// Event представляет собой интерфейс для всех событий
type Event interface {
	GetType() EventType
}

// EventSink принимает события мира. Вызов не должен блокироваться.
type EventSink interface {
	Emit(ev Event)
}

// EventSinkFunc позволяет использовать функцию как EventSink
type EventSinkFunc func(ev Event)

// Emit вызывает функцию
func (f EventSinkFunc) Emit(ev Event) { f(ev) }

// ItemDropEvent - предметы выпали в точке мира (в пикселях)
type ItemDropEvent struct {
	Item     block.ItemID
	Count    int
	Position vec.Vec2Float
}

// GetType возвращает тип события
func (e ItemDropEvent) GetType() EventType { return EventTypeItemDrop }

// BlockDestroyedEvent - блок разрушен
type BlockDestroyedEvent struct {
	Tile  vec.Vec2
	Layer BlockLayer
	Block block.BlockID
}

// GetType возвращает тип события
func (e BlockDestroyedEvent) GetType() EventType { return EventTypeBlockDestroyed }

// BlockPlacedEvent - блоки поставлены вызовом Put
type BlockPlacedEvent struct {
	Tiles []vec.Vec2
	Layer BlockLayer
	Block block.BlockID
}

// GetType возвращает тип события
func (e BlockPlacedEvent) GetType() EventType { return EventTypeBlockPlaced }

// ElementDestroyedEvent - статический объект разрушен
type ElementDestroyedEvent struct {
	Type block.ElementID
	Rect vec.Rect
}

// GetType возвращает тип события
func (e ElementDestroyedEvent) GetType() EventType { return EventTypeElementDestroyed }

// RenderReinitEvent просит кэш отрисовки построить окно заново
type RenderReinitEvent struct {
	Reason string
}

// GetType возвращает тип события
func (e RenderReinitEvent) GetType() EventType { return EventTypeRenderReinit }

type nopSink struct{}

func (nopSink) Emit(Event) {}
