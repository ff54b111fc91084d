package vec

import "math"

// Vec2 представляет целочисленные 2D координаты (тайлы, чанки)
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// FloorDiv выполняет целочисленное деление с округлением вниз.
// Для отрицательных координат -1/16 == -1, а не 0.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod возвращает неотрицательный остаток от деления
func FloorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// ToChunkCoords преобразует глобальные координаты тайла в координаты чанка
func (v Vec2) ToChunkCoords(chunkSize int) Vec2 {
	return Vec2{X: FloorDiv(v.X, chunkSize), Y: FloorDiv(v.Y, chunkSize)}
}

// LocalInChunk возвращает локальные координаты тайла внутри его чанка
func (v Vec2) LocalInChunk(chunkSize int) Local {
	return Local{Col: FloorMod(v.X, chunkSize), Row: FloorMod(v.Y, chunkSize)}
}

// TileAt возвращает тайл, содержащий точку мира в пикселях
func TileAt(p Vec2Float, blockSize int) Vec2 {
	b := float64(blockSize)
	return Vec2{X: int(math.Floor(p.X / b)), Y: int(math.Floor(p.Y / b))}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
