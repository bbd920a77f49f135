package world

import (
	"fmt"
	"sort"

	"voxelforge.dev/internal/sim/catalogs"
)

// Storage is the persistence boundary for chunk records. LoadChunk
// returns (nil, nil) when no record exists, so the caller generates.
type Storage interface {
	LoadChunk(cx, cz int) (*Chunk, error)
	SaveChunk(c *Chunk) error
}

type Gen struct {
	Seed      int64
	BoundaryR int // blocks, 0 = unbounded
	Height    int
}

// ChunkStore owns the resident chunk set. Loads go through Storage
// first and fall back to deterministic generation; reads and writes
// against non-resident chunks fail with ErrNotLoaded rather than
// faulting anything in. Accessed only from the world loop goroutine.
type ChunkStore struct {
	gen    Gen
	cat    *catalogs.Catalogs
	chunks map[ChunkKey]*Chunk

	storage Storage // nil for ephemeral worlds

	// Set by the light engine after construction.
	onBlockChange func(pos Vec3i, old, now uint16)
	onChunkLoad   func(c *Chunk)
}

func NewChunkStore(gen Gen, cat *catalogs.Catalogs, storage Storage) *ChunkStore {
	if gen.Height <= 0 {
		gen.Height = 64
	}
	return &ChunkStore{
		gen:     gen,
		cat:     cat,
		chunks:  map[ChunkKey]*Chunk{},
		storage: storage,
	}
}

func (s *ChunkStore) Height() int                  { return s.gen.Height }
func (s *ChunkStore) Catalogs() *catalogs.Catalogs { return s.cat }

func (s *ChunkStore) inBounds(pos Vec3i) bool {
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return false
	}
	if s.gen.BoundaryR > 0 {
		if pos.X < -s.gen.BoundaryR || pos.X > s.gen.BoundaryR || pos.Z < -s.gen.BoundaryR || pos.Z > s.gen.BoundaryR {
			return false
		}
	}
	return true
}

// Loaded reports whether the chunk is resident.
func (s *ChunkStore) Loaded(k ChunkKey) bool {
	_, ok := s.chunks[k]
	return ok
}

// Get returns the resident chunk, never loading.
func (s *ChunkStore) Get(k ChunkKey) (*Chunk, bool) {
	c, ok := s.chunks[k]
	return c, ok
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// Load makes the chunk resident: already-resident chunks are returned
// as-is, persisted records are restored, and missing records are
// generated deterministically from the seed.
func (s *ChunkStore) Load(cx, cz int) (*Chunk, error) {
	k := ChunkKey{CX: cx, CZ: cz}
	if c, ok := s.chunks[k]; ok {
		return c, nil
	}

	var c *Chunk
	if s.storage != nil {
		loaded, err := s.storage.LoadChunk(cx, cz)
		if err != nil {
			return nil, err
		}
		// A record sized for a different world height would index past
		// its arrays everywhere downstream; reject it before residency.
		if loaded != nil && loaded.Height != s.gen.Height {
			return nil, fmt.Errorf("%w: chunk %d,%d: record height %d, world height %d",
				ErrStorage, cx, cz, loaded.Height, s.gen.Height)
		}
		c = loaded
	}
	if c == nil {
		c = NewChunk(cx, cz, s.gen.Height)
		s.generate(c)
		c.markDirty()
	}
	s.chunks[k] = c
	if s.onChunkLoad != nil {
		s.onChunkLoad(c)
	}
	return c, nil
}

// Unload persists the chunk if dirty and drops it from residency.
// Unloading a non-resident chunk is a no-op.
func (s *ChunkStore) Unload(cx, cz int) error {
	k := ChunkKey{CX: cx, CZ: cz}
	c, ok := s.chunks[k]
	if !ok {
		return nil
	}
	if c.Dirty() && s.storage != nil {
		if err := s.storage.SaveChunk(c); err != nil {
			return err
		}
		c.clearDirty()
	}
	delete(s.chunks, k)
	return nil
}

// Block returns the id at pos. Out-of-bounds positions read as air.
func (s *ChunkStore) Block(pos Vec3i) (uint16, error) {
	if !s.inBounds(pos) {
		return 0, nil
	}
	c, ok := s.chunks[KeyFor(pos)]
	if !ok {
		return 0, fmt.Errorf("%w: chunk %d,%d", ErrNotLoaded, floorDiv(pos.X, ChunkSide), floorDiv(pos.Z, ChunkSide))
	}
	return c.Get(mod(pos.X, ChunkSide), pos.Y, mod(pos.Z, ChunkSide)), nil
}

// SetBlock writes the id at pos, swapping any block-entity state the
// old and new kinds require, then notifies the light engine.
func (s *ChunkStore) SetBlock(pos Vec3i, id uint16) error {
	if !s.inBounds(pos) {
		return fmt.Errorf("position %v out of bounds", pos)
	}
	c, ok := s.chunks[KeyFor(pos)]
	if !ok {
		return fmt.Errorf("%w: chunk %d,%d", ErrNotLoaded, floorDiv(pos.X, ChunkSide), floorDiv(pos.Z, ChunkSide))
	}
	lx, lz := mod(pos.X, ChunkSide), mod(pos.Z, ChunkSide)
	old := c.Get(lx, pos.Y, lz)
	if old == id {
		return nil
	}
	c.Set(lx, pos.Y, lz, id)

	// Old entity state is discarded with the block; a fresh one is
	// created when the new kind needs it.
	if _, had := c.Entities[pos]; had {
		delete(c.Entities, pos)
		c.markDirty()
	}
	if kind := s.cat.Blocks.Entity(id); kind != "" {
		c.Entities[pos] = NewBlockEntity(kind, pos)
		c.markDirty()
	}

	if s.onBlockChange != nil {
		s.onBlockChange(pos, old, id)
	}
	return nil
}

// Entity returns the block entity at pos, if any. The chunk must be
// resident.
func (s *ChunkStore) Entity(pos Vec3i) (*BlockEntity, error) {
	c, ok := s.chunks[KeyFor(pos)]
	if !ok {
		return nil, fmt.Errorf("%w: chunk %d,%d", ErrNotLoaded, floorDiv(pos.X, ChunkSide), floorDiv(pos.Z, ChunkSide))
	}
	return c.Entities[pos], nil
}

// CopyRegion snapshots block ids for the inclusive box [min, max].
// Every chunk the box touches must be resident.
func (s *ChunkStore) CopyRegion(min, max Vec3i) ([]uint16, error) {
	if min.X > max.X || min.Y > max.Y || min.Z > max.Z {
		return nil, fmt.Errorf("inverted region %v..%v", min, max)
	}
	out := make([]uint16, 0, (max.X-min.X+1)*(max.Y-min.Y+1)*(max.Z-min.Z+1))
	for y := min.Y; y <= max.Y; y++ {
		for z := min.Z; z <= max.Z; z++ {
			for x := min.X; x <= max.X; x++ {
				b, err := s.Block(Vec3i{X: x, Y: y, Z: z})
				if err != nil {
					return nil, err
				}
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// FlushDirty saves every dirty resident chunk. Chunks stay resident.
func (s *ChunkStore) FlushDirty() error {
	if s.storage == nil {
		return nil
	}
	for _, k := range s.LoadedChunkKeys() {
		c := s.chunks[k]
		if !c.Dirty() {
			continue
		}
		if err := s.storage.SaveChunk(c); err != nil {
			return err
		}
		c.clearDirty()
	}
	return nil
}
