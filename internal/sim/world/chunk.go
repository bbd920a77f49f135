package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

// Chunk is one 16x16 column of blocks, Height voxels tall, plus both
// light channels and any block entities inside it. Chunks are touched
// only from the world loop goroutine.
type Chunk struct {
	CX, CZ int
	Height int

	Blocks     []uint16 // len = 16*16*Height
	SkyLight   []uint8  // 0..15 per voxel
	BlockLight []uint8  // 0..15 per voxel

	// Keyed by world position.
	Entities map[Vec3i]*BlockEntity

	dirty bool
	hash  [32]byte
}

func NewChunk(cx, cz, height int) *Chunk {
	n := ChunkSide * ChunkSide * height
	return &Chunk{
		CX:         cx,
		CZ:         cz,
		Height:     height,
		Blocks:     make([]uint16, n),
		SkyLight:   make([]uint8, n),
		BlockLight: make([]uint8, n),
		Entities:   map[Vec3i]*BlockEntity{},
	}
}

func (c *Chunk) Key() ChunkKey { return ChunkKey{CX: c.CX, CZ: c.CZ} }

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return (y*ChunkSide+z)*ChunkSide + x
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Sky(x, y, z int) uint8   { return c.SkyLight[c.index(x, y, z)] }
func (c *Chunk) Block(x, y, z int) uint8 { return c.BlockLight[c.index(x, y, z)] }

func (c *Chunk) setSky(x, y, z int, v uint8) bool {
	i := c.index(x, y, z)
	if c.SkyLight[i] == v {
		return false
	}
	c.SkyLight[i] = v
	c.dirty = true
	return true
}

func (c *Chunk) setBlockLight(x, y, z int, v uint8) bool {
	i := c.index(x, y, z)
	if c.BlockLight[i] == v {
		return false
	}
	c.BlockLight[i] = v
	c.dirty = true
	return true
}

func (c *Chunk) Dirty() bool { return c.dirty }
func (c *Chunk) markDirty()  { c.dirty = true }
func (c *Chunk) clearDirty() { c.dirty = false }

// EntityKeys returns the block-entity positions in deterministic order.
func (c *Chunk) EntityKeys() []Vec3i {
	keys := make([]Vec3i, 0, len(c.Entities))
	for p := range c.Entities {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		if keys[i].Y != keys[j].Y {
			return keys[i].Y < keys[j].Y
		}
		return keys[i].Z < keys[j].Z
	})
	return keys
}

// Digest hashes blocks, both light channels and entity inventories.
// Cached until the chunk is next mutated.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		h.Write(c.SkyLight)
		h.Write(c.BlockLight)
		for _, p := range c.EntityKeys() {
			e := c.Entities[p]
			binary.Write(h, binary.LittleEndian, int64(p.X))
			binary.Write(h, binary.LittleEndian, int64(p.Y))
			binary.Write(h, binary.LittleEndian, int64(p.Z))
			h.Write([]byte(e.Kind))
			binary.Write(h, binary.LittleEndian, int64(e.Cooldown))
			for _, s := range e.Inv.Slots {
				h.Write([]byte(s.Item))
				binary.Write(h, binary.LittleEndian, int64(s.Count))
			}
		}
		copy(c.hash[:], h.Sum(nil))
	}
	return c.hash
}
