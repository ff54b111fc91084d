package vec

import "math"

// Rect - прямоугольник в пикселях мира. Pos - левый верхний угол.
type Rect struct {
	X, Y, W, H float64
}

// NewRect создаёт прямоугольник из позиции и размера
func NewRect(pos, size Vec2Float) Rect {
	return Rect{X: pos.X, Y: pos.Y, W: size.X, H: size.Y}
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Pos возвращает левый верхний угол
func (r Rect) Pos() Vec2Float { return Vec2Float{X: r.X, Y: r.Y} }

// Size возвращает размеры
func (r Rect) Size() Vec2Float { return Vec2Float{X: r.W, Y: r.H} }

// Center возвращает центр прямоугольника
func (r Rect) Center() Vec2Float {
	return Vec2Float{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Intersects проверяет строгое пересечение (касание гранями не считается)
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Intersection возвращает общую часть двух прямоугольников
func (r Rect) Intersection(o Rect) (Rect, bool) {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.Right(), o.Right())
	y1 := math.Min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}, false
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

// TileRange возвращает включительный диапазон тайлов, которые покрывает
// полуоткрытый прямоугольник [X, X+W) x [Y, Y+H).
func (r Rect) TileRange(blockSize int) (min, max Vec2) {
	b := float64(blockSize)
	min = Vec2{X: int(math.Floor(r.X / b)), Y: int(math.Floor(r.Y / b))}
	max = Vec2{X: int(math.Ceil(r.Right()/b)) - 1, Y: int(math.Ceil(r.Bottom()/b)) - 1}
	return min, max
}
