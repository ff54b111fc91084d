package game

import (
	"fmt"

	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/world/block"
)

// Размеры инвентаря
const (
	MaxSlots   = 10
	StackLimit = 64
)

// Stack - содержимое одной ячейки
type Stack struct {
	Item  block.ItemID
	Count int
}

// Inventory хранит предметы игрока в MaxSlots ячейках
type Inventory struct {
	reg      *block.Registry
	slots    [MaxSlots]Stack
	selected int
}

// NewInventory создаёт пустой инвентарь
func NewInventory(reg *block.Registry) *Inventory {
	return &Inventory{reg: reg}
}

// limit возвращает размер стопки предмета
func (inv *Inventory) limit(item block.ItemID) int {
	def, err := inv.reg.Item(item)
	if err != nil || def.MaxStack <= 0 || def.MaxStack > StackLimit {
		return StackLimit
	}
	return def.MaxStack
}

// Add кладёт до n предметов: сначала в неполные стопки того же предмета,
// затем в пустые ячейки. Возвращает число положенных.
func (inv *Inventory) Add(item block.ItemID, n int) int {
	if n <= 0 {
		return 0
	}
	limit := inv.limit(item)
	added := 0
	for i := range inv.slots {
		s := &inv.slots[i]
		if s.Count == 0 || s.Item != item || s.Count >= limit {
			continue
		}
		k := min(limit-s.Count, n-added)
		s.Count += k
		added += k
		if added == n {
			return added
		}
	}
	for i := range inv.slots {
		s := &inv.slots[i]
		if s.Count != 0 {
			continue
		}
		k := min(limit, n-added)
		*s = Stack{Item: item, Count: k}
		added += k
		if added == n {
			break
		}
	}
	return added
}

// Remove забирает до n предметов, начиная с последних ячеек. Возвращает число забранных.
func (inv *Inventory) Remove(item block.ItemID, n int) int {
	removed := 0
	for i := len(inv.slots) - 1; i >= 0 && removed < n; i-- {
		s := &inv.slots[i]
		if s.Count == 0 || s.Item != item {
			continue
		}
		k := min(s.Count, n-removed)
		s.Count -= k
		removed += k
		if s.Count == 0 {
			*s = Stack{}
		}
	}
	return removed
}

// Count возвращает общее количество предмета
func (inv *Inventory) Count(item block.ItemID) int {
	n := 0
	for _, s := range inv.slots {
		if s.Count > 0 && s.Item == item {
			n += s.Count
		}
	}
	return n
}

// Slot возвращает содержимое ячейки
func (inv *Inventory) Slot(i int) Stack {
	if i < 0 || i >= MaxSlots {
		return Stack{}
	}
	return inv.slots[i]
}

// Select делает ячейку i текущей. Номер вне диапазона игнорируется.
func (inv *Inventory) Select(i int) {
	if i >= 0 && i < MaxSlots {
		inv.selected = i
	}
}

// Selected возвращает номер текущей ячейки
func (inv *Inventory) Selected() int { return inv.selected }

// Slots возвращает непустые ячейки в порядке номеров
func (inv *Inventory) Slots() []storage.InventorySlot {
	var out []storage.InventorySlot
	for i, s := range inv.slots {
		if s.Count > 0 {
			out = append(out, storage.InventorySlot{Slot: i, Item: s.Item, Count: s.Count})
		}
	}
	return out
}

// Restore заменяет содержимое сохранёнными ячейками
func (inv *Inventory) Restore(rows []storage.InventorySlot) error {
	var slots [MaxSlots]Stack
	for _, r := range rows {
		if r.Slot < 0 || r.Slot >= MaxSlots {
			return fmt.Errorf("ячейка инвентаря %d вне диапазона", r.Slot)
		}
		if _, err := inv.reg.Item(r.Item); err != nil {
			return fmt.Errorf("ячейка инвентаря %d: %w", r.Slot, err)
		}
		if r.Count <= 0 {
			continue
		}
		slots[r.Slot] = Stack{Item: r.Item, Count: min(r.Count, inv.limit(r.Item))}
	}
	inv.slots = slots
	return nil
}
