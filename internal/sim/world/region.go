package world

// RegionRequest asks the loop for a read-only copy of one resident
// chunk. Resp must be buffered; the loop never blocks on it.
type RegionRequest struct {
	CX, CZ int
	Resp   chan RegionSnapshot
}

// RegionSnapshot is a detached copy safe to encode off-loop. OK is
// false when the chunk is not resident.
type RegionSnapshot struct {
	OK       bool
	Tick     uint64
	Height   int
	Blocks   []uint16
	Sky      []uint8
	BlockLit []uint8
	Entities []Vec3i
}

// RequestRegion submits a region request. Returns false when the loop
// is saturated.
func (w *World) RequestRegion(req RegionRequest) bool {
	select {
	case w.regionReq <- req:
		return true
	default:
		return false
	}
}

func (w *World) handleRegionRequest(req RegionRequest) {
	snap := RegionSnapshot{Tick: w.tick.Load()}
	c, ok := w.store.Get(ChunkKey{CX: req.CX, CZ: req.CZ})
	if ok {
		snap.OK = true
		snap.Height = c.Height
		snap.Blocks = append([]uint16(nil), c.Blocks...)
		snap.Sky = append([]uint8(nil), c.SkyLight...)
		snap.BlockLit = append([]uint8(nil), c.BlockLight...)
		snap.Entities = c.EntityKeys()
	}
	select {
	case req.Resp <- snap:
	default:
	}
}
