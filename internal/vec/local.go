package vec

// Local - координаты ячейки внутри чанка. Col растёт вправо, Row - вниз.
type Local struct {
	Col, Row int
}

// InBounds проверяет, что координаты лежат внутри чанка размера size
func (l Local) InBounds(size int) bool {
	return l.Col >= 0 && l.Col < size && l.Row >= 0 && l.Row < size
}

// Wrap переносит координаты, вышедшие за границу, в соседний чанк.
// Возвращает смещение соседнего чанка и локальные координаты в нём.
func (l Local) Wrap(size int) (Vec2, Local) {
	offset := Vec2{X: FloorDiv(l.Col, size), Y: FloorDiv(l.Row, size)}
	return offset, Local{Col: FloorMod(l.Col, size), Row: FloorMod(l.Row, size)}
}

// Clamp прижимает координаты к границам чанка
func (l Local) Clamp(size int) Local {
	return Local{Col: clampInt(l.Col, 0, size-1), Row: clampInt(l.Row, 0, size-1)}
}

// Index возвращает линейный индекс ячейки (построчно)
func (l Local) Index(size int) int {
	return l.Row*size + l.Col
}

// Offset сдвигает координаты
func (l Local) Offset(dc, dr int) Local {
	return Local{Col: l.Col + dc, Row: l.Row + dr}
}

// ToWorld возвращает глобальные координаты тайла для чанка chunk
func (l Local) ToWorld(chunk Vec2, size int) Vec2 {
	return Vec2{X: chunk.X*size + l.Col, Y: chunk.Y*size + l.Row}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
