package world

import (
	"fmt"

	"voxelforge.dev/internal/protocol"
)

// MaxStack is the per-slot count limit for every item kind.
const MaxStack = 64

// Inventory is a fixed array of slots. A zero-value ItemStack is an
// empty slot; filled slots keep Count in [1, MaxStack].
type Inventory struct {
	Slots []protocol.ItemStack
}

func NewInventory(size int) Inventory {
	return Inventory{Slots: make([]protocol.ItemStack, size)}
}

func (inv *Inventory) Total() int {
	n := 0
	for _, s := range inv.Slots {
		n += s.Count
	}
	return n
}

// TakeOne removes one unit from the first non-empty slot and returns
// the item kind with its source slot, or ok=false when empty.
func (inv *Inventory) TakeOne() (item string, slot int, ok bool) {
	for i := range inv.Slots {
		if inv.Slots[i].Count == 0 {
			continue
		}
		item = inv.Slots[i].Item
		inv.Slots[i].Count--
		if inv.Slots[i].Count == 0 {
			inv.Slots[i] = protocol.ItemStack{}
		}
		return item, i, true
	}
	return "", 0, false
}

// InsertOne places one unit of item into the first matching stack with
// room, or the first empty slot. Returns false when the inventory is full.
func (inv *Inventory) InsertOne(item string) bool {
	for i := range inv.Slots {
		if inv.Slots[i].Item == item && inv.Slots[i].Count > 0 && inv.Slots[i].Count < MaxStack {
			inv.Slots[i].Count++
			return true
		}
	}
	for i := range inv.Slots {
		if inv.Slots[i].Count == 0 {
			inv.Slots[i] = protocol.ItemStack{Item: item, Count: 1}
			return true
		}
	}
	return false
}

// restoreOne puts one unit of item back into the slot TakeOne drained.
// Used to unwind a transfer whose insert half failed.
func (inv *Inventory) restoreOne(item string, slot int) {
	if inv.Slots[slot].Count == 0 {
		inv.Slots[slot] = protocol.ItemStack{Item: item, Count: 1}
		return
	}
	inv.Slots[slot].Count++
}

// TransferOne moves one unit from src to dst atomically. On any
// failure both inventories are left exactly as they were.
func TransferOne(src, dst *Inventory) (string, error) {
	item, slot, ok := src.TakeOne()
	if !ok {
		return "", fmt.Errorf("%w: source empty", ErrInvalidTransfer)
	}
	if !dst.InsertOne(item) {
		src.restoreOne(item, slot)
		return "", fmt.Errorf("%w: destination full", ErrInvalidTransfer)
	}
	return item, nil
}

// CopySlots returns a detached copy for wire responses.
func (inv *Inventory) CopySlots() []protocol.ItemStack {
	out := make([]protocol.ItemStack, len(inv.Slots))
	copy(out, inv.Slots)
	return out
}
