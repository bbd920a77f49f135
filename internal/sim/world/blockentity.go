package world

// Block-entity kinds and their fixed inventory shapes.
const (
	EntityChest  = "CHEST"
	EntityHopper = "HOPPER"

	ChestSlots  = 27
	HopperSlots = 5

	// Ticks a hopper waits after a successful move.
	HopperCooldownTicks = 8
)

// BlockEntity is the per-position state a container block carries.
// Cooldown is only meaningful for hoppers.
type BlockEntity struct {
	Kind     string
	Pos      Vec3i
	Inv      Inventory
	Cooldown int
}

// NewBlockEntity builds the entity state for kind, or nil for block
// kinds that carry none.
func NewBlockEntity(kind string, pos Vec3i) *BlockEntity {
	switch kind {
	case EntityChest:
		return &BlockEntity{Kind: kind, Pos: pos, Inv: NewInventory(ChestSlots)}
	case EntityHopper:
		return &BlockEntity{Kind: kind, Pos: pos, Inv: NewInventory(HopperSlots)}
	default:
		return nil
	}
}
