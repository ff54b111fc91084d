package physics

import (
	"math"

	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
)

// Body - движущееся тело: прямоугольник в пикселях мира, скорость в пикселях в секунду
type Body struct {
	Rect     vec.Rect
	Velocity vec.Vec2Float
	Gravity  bool // тело подвержено гравитации
	Grounded bool // по итогам последнего Move тело стоит на опоре
}

// Feet возвращает нижнюю грань тела
func (b *Body) Feet() float64 { return b.Rect.Bottom() }

// SetFeet ставит тело нижней гранью на y
func (b *Body) SetFeet(y float64) { b.Rect.Y = y - b.Rect.H }

// Center возвращает центр тела
func (b *Body) Center() vec.Vec2Float { return b.Rect.Center() }

// epsilon гасит ошибки округления при сравнении граней
const epsilon = 1e-9

// overlaps проверяет строгое пересечение тела с препятствием (касание гранями не считается)
func overlaps(b *Body, r vec.Rect) bool {
	return b.Rect.Intersects(r)
}

// isRamp сообщает, что клетка - выпуклый угол-скат
func isRamp(r world.CollisionRect) bool {
	return r.Mask.IsRamp()
}

// feetInRow проверяет, что ноги тела находятся в строке клетки r
func feetInRow(b *Body, r vec.Rect) bool {
	feet := b.Feet()
	return feet > r.Top()+epsilon && feet <= r.Bottom()+epsilon
}

// touchesX проверяет, что тело пересекает или касается клетки r по горизонтали
func touchesX(b *Body, r vec.Rect) bool {
	return b.Rect.Right() >= r.Left()-epsilon && b.Rect.Left() <= r.Right()+epsilon
}

// rampSurface возвращает высоту поверхности ската под телом. Проникновение -
// глубина ведущей ноги в клетку по горизонтали, ограниченная [0, B].
// RampRight (/) поднимается к востоку, RampLeft (\) - к западу.
func rampSurface(b *Body, r world.CollisionRect) float64 {
	var p float64
	if r.Mask == world.RampRight {
		p = b.Rect.Right() - r.Rect.Left()
	} else {
		p = r.Rect.Right() - b.Rect.Left()
	}
	p = math.Max(0, math.Min(r.Rect.W, p))
	return r.Rect.Bottom() - p
}

// clampX выталкивает тело из r по горизонтали против направления vx.
// При vx == 0 сторона выбирается по центрам.
func clampX(b *Body, r vec.Rect, vx float64) {
	if vx > 0 || (vx == 0 && b.Center().X < r.Center().X) {
		b.Rect.X = r.Left() - b.Rect.W
	} else {
		b.Rect.X = r.Right()
	}
}
