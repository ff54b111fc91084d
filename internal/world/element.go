package world

import (
	"math"

	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world/block"
)

// StaticElement - разрушаемое украшение (дерево, камень).
// Rect стоит левым нижним углом на верхней грани опорной клетки.
type StaticElement struct {
	Type          block.ElementID
	Rect          vec.Rect
	Durability    float64
	MaxDurability float64
}

// Destroyed сообщает, что прочность исчерпана
func (e *StaticElement) Destroyed() bool { return e.Durability <= 0 }

// TakeDamage уменьшает прочность, не опускаясь ниже нуля
func (e *StaticElement) TakeDamage(amount float64) {
	e.Durability = math.Max(0, e.Durability-amount)
}

// Recover восстанавливает прочность до максимума. Возвращает true, если объект полностью цел.
func (e *StaticElement) Recover(amount float64) bool {
	e.Durability = math.Min(e.MaxDurability, e.Durability+amount)
	return e.Durability >= e.MaxDurability
}

// Anchor возвращает тайл, содержащий левый нижний угол объекта
func (e *StaticElement) Anchor(blockSize int) vec.Vec2 {
	b := float64(blockSize)
	return vec.Vec2{
		X: int(math.Floor(e.Rect.X / b)),
		Y: int(math.Ceil(e.Rect.Bottom()/b)) - 1,
	}
}

// elementRect строит прямоугольник объекта по опорному тайлу и размерам в пикселях
func elementRect(anchor vec.Vec2, w, h float64, blockSize int) vec.Rect {
	b := float64(blockSize)
	bottom := float64(anchor.Y+1) * b
	return vec.Rect{X: float64(anchor.X) * b, Y: bottom - h, W: w, H: h}
}

func elementToRow(e *StaticElement, blockSize int) storage.StaticObjectRow {
	a := e.Anchor(blockSize)
	return storage.StaticObjectRow{
		X:         a.X,
		Y:         a.Y,
		Type:      e.Type,
		Width:     e.Rect.W,
		Height:    e.Rect.H,
		Health:    e.Durability,
		MaxHealth: e.MaxDurability,
	}
}

func elementFromRow(r storage.StaticObjectRow, blockSize int) *StaticElement {
	return &StaticElement{
		Type:          r.Type,
		Rect:          elementRect(vec.Vec2{X: r.X, Y: r.Y}, r.Width, r.Height, blockSize),
		Durability:    r.Health,
		MaxDurability: r.MaxHealth,
	}
}
