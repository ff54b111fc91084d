package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/world/block"
)

func newTestInventory(t *testing.T) (*Inventory, *block.Registry) {
	t.Helper()
	reg, err := block.LoadDefault()
	require.NoError(t, err)
	return NewInventory(reg), reg
}

func TestInventoryStacksUpToLimit(t *testing.T) {
	inv, reg := newTestInventory(t)
	dirt := itemID(t, reg, "dirt")

	assert.Equal(t, 100, inv.Add(dirt, 100))
	assert.Equal(t, Stack{Item: dirt, Count: StackLimit}, inv.Slot(0))
	assert.Equal(t, Stack{Item: dirt, Count: 100 - StackLimit}, inv.Slot(1))
	assert.Equal(t, 100, inv.Count(dirt))

	// Неполная стопка заполняется раньше пустых ячеек
	assert.Equal(t, 10, inv.Add(dirt, 10))
	assert.Equal(t, 46, inv.Slot(1).Count)
	assert.Zero(t, inv.Slot(2).Count)
}

func TestInventoryFull(t *testing.T) {
	inv, reg := newTestInventory(t)
	dirt := itemID(t, reg, "dirt")
	stone := itemID(t, reg, "stone")

	assert.Equal(t, MaxSlots*StackLimit, inv.Add(dirt, MaxSlots*StackLimit+5))
	assert.Zero(t, inv.Add(stone, 1), "в полном инвентаре нет места")
	assert.Zero(t, inv.Add(dirt, 0))
}

func TestInventoryRemove(t *testing.T) {
	inv, reg := newTestInventory(t)
	dirt := itemID(t, reg, "dirt")
	stone := itemID(t, reg, "stone")

	inv.Add(dirt, 70)
	inv.Add(stone, 3)

	assert.Equal(t, 10, inv.Remove(dirt, 10))
	assert.Equal(t, 60, inv.Count(dirt))
	assert.Equal(t, Stack{Item: dirt, Count: 60}, inv.Slot(0), "забираем с последних ячеек")
	assert.Equal(t, 3, inv.Remove(stone, 5))
	assert.Zero(t, inv.Count(stone))
	assert.Equal(t, Stack{}, inv.Slot(2))
}

func TestInventorySlotsAndRestore(t *testing.T) {
	inv, reg := newTestInventory(t)
	dirt := itemID(t, reg, "dirt")
	coal := itemID(t, reg, "coal")

	inv.Add(dirt, 2)
	inv.Add(coal, 4)
	slots := inv.Slots()
	assert.Equal(t, []storage.InventorySlot{
		{Slot: 0, Item: dirt, Count: 2},
		{Slot: 1, Item: coal, Count: 4},
	}, slots)

	other := NewInventory(reg)
	require.NoError(t, other.Restore(slots))
	assert.Equal(t, slots, other.Slots())

	assert.Error(t, other.Restore([]storage.InventorySlot{{Slot: MaxSlots, Item: dirt, Count: 1}}))
	assert.ErrorIs(t, other.Restore([]storage.InventorySlot{{Slot: 0, Item: 999, Count: 1}}), block.ErrUnknownItem)
	assert.Equal(t, slots, other.Slots(), "ошибочное восстановление не меняет инвентарь")
}

func TestInventorySelect(t *testing.T) {
	inv, _ := newTestInventory(t)
	inv.Select(3)
	assert.Equal(t, 3, inv.Selected())
	inv.Select(MaxSlots)
	inv.Select(-1)
	assert.Equal(t, 3, inv.Selected())
}
