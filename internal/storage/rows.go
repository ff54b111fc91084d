package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/annel0/survival-game/internal/vec"
)

// SortBlockRows упорядочивает блоки по строке, столбцу и слою.
func SortBlockRows(rows []BlockRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Layer < b.Layer
	})
}

// SortObjectRows упорядочивает объекты по опорному тайлу и типу.
func SortObjectRows(rows []StaticObjectRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Type < b.Type
	})
}

func sortChunks(coords []vec.Vec2) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Y != coords[j].Y {
			return coords[i].Y < coords[j].Y
		}
		return coords[i].X < coords[j].X
	})
}

func sortSlots(slots []InventorySlot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
}

// checkBlockRows проверяет, что все строки лежат внутри box
func checkBlockRows(box TileBox, rows []BlockRow) error {
	for _, r := range rows {
		if !box.Contains(r.X, r.Y) {
			return fmt.Errorf("блок (%d,%d) вне области сохранения", r.X, r.Y)
		}
		if r.Layer > 1 {
			return fmt.Errorf("недействительный слой блока (%d,%d): %d", r.X, r.Y, r.Layer)
		}
	}
	return nil
}

func checkObjectRows(box TileBox, rows []StaticObjectRow) error {
	for _, r := range rows {
		if !box.Contains(r.X, r.Y) {
			return fmt.Errorf("объект (%d,%d) вне области сохранения", r.X, r.Y)
		}
	}
	return nil
}

// ctxErr проверяет контекст на отмену
func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
