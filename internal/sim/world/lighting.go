package world

import "fmt"

// LightEngine keeps both light channels converged incrementally. Block
// edits enqueue their neighborhood; ProcessPending drains a bounded
// slice of the queue each tick and reseeds neighbors of any voxel whose
// value moved, so light settles to the same fixed point a full
// recompute would reach without ever stalling the tick.
//
// Positions whose chunk is not resident are parked per chunk key and
// re-enqueued when that chunk loads.
type LightEngine struct {
	store *ChunkStore

	queue  []Vec3i
	queued map[Vec3i]struct{}

	deferred map[ChunkKey][]Vec3i
	parked   map[Vec3i]struct{}
}

func NewLightEngine(store *ChunkStore) *LightEngine {
	e := &LightEngine{
		store:    store,
		queued:   map[Vec3i]struct{}{},
		deferred: map[ChunkKey][]Vec3i{},
		parked:   map[Vec3i]struct{}{},
	}
	store.onBlockChange = e.onBlockChanged
	store.onChunkLoad = e.onChunkLoaded
	return e
}

// PendingLen reports how many positions wait in the active queue.
func (e *LightEngine) PendingLen() int { return len(e.queue) }

// Enqueue schedules pos for recomputation. Duplicate enqueues of a
// position already waiting are no-ops.
func (e *LightEngine) Enqueue(pos Vec3i) {
	if pos.Y < 0 || pos.Y >= e.store.Height() {
		return
	}
	k := KeyFor(pos)
	if !e.store.Loaded(k) {
		e.park(k, pos)
		return
	}
	if _, ok := e.queued[pos]; ok {
		return
	}
	e.queued[pos] = struct{}{}
	e.queue = append(e.queue, pos)
}

func (e *LightEngine) park(k ChunkKey, pos Vec3i) {
	if _, ok := e.parked[pos]; ok {
		return
	}
	e.parked[pos] = struct{}{}
	e.deferred[k] = append(e.deferred[k], pos)
}

func (e *LightEngine) onBlockChanged(pos Vec3i, old, now uint16) {
	e.Enqueue(pos)
	for _, d := range neighborDirs {
		e.Enqueue(pos.Add(d))
	}
}

func (e *LightEngine) onChunkLoaded(c *Chunk) {
	e.seedChunk(c)

	// Seam columns on both sides, so light flows across the new border.
	for y := 0; y < c.Height; y++ {
		for i := 0; i < ChunkSide; i++ {
			wx0 := c.CX * ChunkSide
			wz0 := c.CZ * ChunkSide
			for _, p := range [...]Vec3i{
				{wx0, y, wz0 + i}, {wx0 - 1, y, wz0 + i},
				{wx0 + ChunkSide - 1, y, wz0 + i}, {wx0 + ChunkSide, y, wz0 + i},
				{wx0 + i, y, wz0}, {wx0 + i, y, wz0 - 1},
				{wx0 + i, y, wz0 + ChunkSide - 1}, {wx0 + i, y, wz0 + ChunkSide},
			} {
				e.Enqueue(p)
			}
		}
	}

	// Anything parked against this chunk can run now.
	k := c.Key()
	if waiting := e.deferred[k]; len(waiting) > 0 {
		delete(e.deferred, k)
		for _, p := range waiting {
			delete(e.parked, p)
			e.Enqueue(p)
		}
	}
}

// seedChunk computes in-chunk lighting to a local fixed point so a
// freshly loaded chunk does not spend several ticks dark.
func (e *LightEngine) seedChunk(c *Chunk) {
	local := make([]Vec3i, 0, len(c.Blocks))
	wx0 := c.CX * ChunkSide
	wz0 := c.CZ * ChunkSide
	for y := c.Height - 1; y >= 0; y-- {
		for z := 0; z < ChunkSide; z++ {
			for x := 0; x < ChunkSide; x++ {
				local = append(local, Vec3i{X: wx0 + x, Y: y, Z: wz0 + z})
			}
		}
	}
	inChunk := func(p Vec3i) bool {
		return p.Y >= 0 && p.Y < c.Height && KeyFor(p) == c.Key()
	}
	for len(local) > 0 {
		p := local[0]
		local = local[1:]
		if e.recompute(p) {
			for _, d := range neighborDirs {
				if n := p.Add(d); inChunk(n) {
					local = append(local, n)
				}
			}
		}
	}
}

// ProcessPending drains up to budget positions from the queue and
// returns how many it processed. Positions whose chunk was unloaded in
// the meantime are re-parked, not dropped.
func (e *LightEngine) ProcessPending(budget int) int {
	processed := 0
	for processed < budget && len(e.queue) > 0 {
		pos := e.queue[0]
		e.queue = e.queue[1:]
		delete(e.queued, pos)
		processed++

		k := KeyFor(pos)
		if !e.store.Loaded(k) {
			e.park(k, pos)
			continue
		}
		if e.recompute(pos) {
			for _, d := range neighborDirs {
				e.Enqueue(pos.Add(d))
			}
		}
	}
	return processed
}

// recompute sets both channels at pos from sources and neighbors.
// Returns true when either channel changed.
func (e *LightEngine) recompute(pos Vec3i) bool {
	c, ok := e.store.Get(KeyFor(pos))
	if !ok {
		return false
	}
	lx, lz := mod(pos.X, ChunkSide), mod(pos.Z, ChunkSide)
	id := c.Get(lx, pos.Y, lz)
	cat := &e.store.cat.Blocks

	var sky, blk uint8
	blk = cat.Emission(id)
	if !cat.Opaque(id) {
		if e.skyExposed(c, lx, pos.Y, lz) {
			sky = 15
		}
		for _, d := range neighborDirs {
			ns, nb := e.lightAt(pos.Add(d))
			// Skylight falls straight down undimmed; every other hop
			// loses one level.
			if d == dirUp {
				if ns > sky {
					sky = ns
				}
			} else if v := dec(ns); v > sky {
				sky = v
			}
			if v := dec(nb); v > blk {
				blk = v
			}
		}
	}

	changed := c.setSky(lx, pos.Y, lz, sky)
	if c.setBlockLight(lx, pos.Y, lz, blk) {
		changed = true
	}
	return changed
}

func dec(v uint8) uint8 {
	if v == 0 {
		return 0
	}
	return v - 1
}

// lightAt reads both channels, treating above-world as full sky,
// below-world and unloaded chunks as dark.
func (e *LightEngine) lightAt(pos Vec3i) (sky, blk uint8) {
	if pos.Y >= e.store.Height() {
		return 15, 0
	}
	if pos.Y < 0 {
		return 0, 0
	}
	c, ok := e.store.Get(KeyFor(pos))
	if !ok {
		return 0, 0
	}
	return c.Sky(mod(pos.X, ChunkSide), pos.Y, mod(pos.Z, ChunkSide)),
		c.Block(mod(pos.X, ChunkSide), pos.Y, mod(pos.Z, ChunkSide))
}

// skyExposed reports whether no opaque block sits above (lx, y, lz)
// within the chunk column.
func (e *LightEngine) skyExposed(c *Chunk, lx, y, lz int) bool {
	cat := &e.store.cat.Blocks
	for yy := y + 1; yy < c.Height; yy++ {
		if cat.Opaque(c.Get(lx, yy, lz)) {
			return false
		}
	}
	return true
}

// RecomputeAll converges every loaded chunk with no budget. The
// incremental path is checked against it in tests.
func (e *LightEngine) RecomputeAll() {
	for _, k := range e.store.LoadedChunkKeys() {
		c, _ := e.store.Get(k)
		wx0 := c.CX * ChunkSide
		wz0 := c.CZ * ChunkSide
		for y := 0; y < c.Height; y++ {
			for z := 0; z < ChunkSide; z++ {
				for x := 0; x < ChunkSide; x++ {
					e.Enqueue(Vec3i{X: wx0 + x, Y: y, Z: wz0 + z})
				}
			}
		}
	}
	for len(e.queue) > 0 {
		e.ProcessPending(1 << 20)
	}
}

// Light reads both stored channels at pos. Stored skylight is the
// full-day value; callers scale it by the clock for time of day.
func (s *ChunkStore) Light(pos Vec3i) (sky, blk uint8, err error) {
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return 0, 0, nil
	}
	c, ok := s.chunks[KeyFor(pos)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: chunk %d,%d", ErrNotLoaded, floorDiv(pos.X, ChunkSide), floorDiv(pos.Z, ChunkSide))
	}
	return c.Sky(mod(pos.X, ChunkSide), pos.Y, mod(pos.Z, ChunkSide)),
		c.Block(mod(pos.X, ChunkSide), pos.Y, mod(pos.Z, ChunkSide)), nil
}
