package world

import "github.com/annel0/survival-game/internal/vec"

// Mask - 4-битная маска соседства клетки на том же слое.
// Бит выставлен, если соседняя клетка в этом направлении непустая.
type Mask uint8

const (
	South Mask = 1 << iota // row+1
	East                   // col+1
	North                  // row-1
	West                   // col-1
)

// Маски угловых клеток, которые обрабатываются как скаты под 45°
const (
	RampRight = South | East // поверхность поднимается вправо: "/"
	RampLeft  = South | West // поверхность поднимается влево: "\"
)

// Has проверяет наличие бита направления
func (m Mask) Has(d Mask) bool { return m&d != 0 }

// IsRamp сообщает, что клетка - скат
func (m Mask) IsRamp() bool { return m == RampRight || m == RampLeft }

// Opposite возвращает противоположное направление
func (m Mask) Opposite() Mask {
	switch m {
	case South:
		return North
	case North:
		return South
	case East:
		return West
	case West:
		return East
	}
	return 0
}

// Delta возвращает смещение (col,row) для направления
func (m Mask) Delta() (dc, dr int) {
	switch m {
	case South:
		return 0, 1
	case North:
		return 0, -1
	case East:
		return 1, 0
	case West:
		return -1, 0
	}
	return 0, 0
}

// Directions - все четыре направления в порядке битов
var Directions = [4]Mask{South, East, North, West}

// neighbor возвращает координаты соседа в направлении d (могут выйти за чанк)
func neighbor(l vec.Local, d Mask) vec.Local {
	dc, dr := d.Delta()
	return l.Offset(dc, dr)
}
