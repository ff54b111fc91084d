package world

import (
	"sort"

	"github.com/annel0/survival-game/internal/vec"
)

// DirtySet - набор областей чанка, которые нужно перерисовать.
// All перекрывает все остальные записи.
type DirtySet struct {
	All      bool
	Rows     map[int]struct{}
	Cols     map[int]struct{}
	Blocks   map[vec.Local]struct{}
	Breaking map[vec.Local]int // клетка -> стадия трещин, -1 если трещины сняты
}

func newDirtySet() DirtySet {
	return DirtySet{
		Rows:     make(map[int]struct{}),
		Cols:     make(map[int]struct{}),
		Blocks:   make(map[vec.Local]struct{}),
		Breaking: make(map[vec.Local]int),
	}
}

// MarkAll помечает чанк целиком, остальные записи больше не нужны
func (d *DirtySet) MarkAll() {
	d.All = true
	clear(d.Rows)
	clear(d.Cols)
	clear(d.Blocks)
	clear(d.Breaking)
}

// MarkRow помечает строку
func (d *DirtySet) MarkRow(row int) {
	if !d.All {
		d.Rows[row] = struct{}{}
	}
}

// MarkCol помечает столбец
func (d *DirtySet) MarkCol(col int) {
	if !d.All {
		d.Cols[col] = struct{}{}
	}
}

// MarkBlock помечает одну клетку
func (d *DirtySet) MarkBlock(l vec.Local) {
	if !d.All {
		d.Blocks[l] = struct{}{}
	}
}

// MarkBreaking запоминает новую стадию трещин клетки
func (d *DirtySet) MarkBreaking(l vec.Local, stage int) {
	if !d.All {
		d.Breaking[l] = stage
	}
}

// Empty сообщает, что перерисовывать нечего
func (d *DirtySet) Empty() bool {
	return !d.All && len(d.Rows) == 0 && len(d.Cols) == 0 && len(d.Blocks) == 0 && len(d.Breaking) == 0
}

// Clear очищает набор
func (d *DirtySet) Clear() {
	d.All = false
	clear(d.Rows)
	clear(d.Cols)
	clear(d.Blocks)
	clear(d.Breaking)
}

// SortedRows возвращает помеченные строки по возрастанию
func (d *DirtySet) SortedRows() []int { return sortedKeys(d.Rows) }

// SortedCols возвращает помеченные столбцы по возрастанию
func (d *DirtySet) SortedCols() []int { return sortedKeys(d.Cols) }

// Cells возвращает помеченные клетки и клетки с изменёнными трещинами построчно
func (d *DirtySet) Cells() []vec.Local {
	seen := make(map[vec.Local]struct{}, len(d.Blocks)+len(d.Breaking))
	out := make([]vec.Local, 0, len(d.Blocks)+len(d.Breaking))
	for l := range d.Blocks {
		seen[l] = struct{}{}
		out = append(out, l)
	}
	for l := range d.Breaking {
		if _, ok := seen[l]; !ok {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
