package world

import (
	"errors"
	"fmt"
	"testing"
)

// memStorage is an in-memory Storage for exercising the load, unload
// and flush paths without a real backing store.
type memStorage struct {
	saved    map[ChunkKey]*Chunk
	loadErr  error
	saveErr  error
	saveHits int
}

func newMemStorage() *memStorage {
	return &memStorage{saved: map[ChunkKey]*Chunk{}}
}

func (m *memStorage) LoadChunk(cx, cz int) (*Chunk, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.saved[ChunkKey{CX: cx, CZ: cz}]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (m *memStorage) SaveChunk(c *Chunk) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saveHits++
	m.saved[c.Key()] = c
	return nil
}

func TestChunkStore_ReadsNeverFaultIn(t *testing.T) {
	w := newTestWorld(t, 42)

	_, err := w.store.Block(Vec3i{5, 10, 5})
	if !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("block read on unloaded chunk: err = %v, want ErrNotLoaded", err)
	}
	if err := w.store.SetBlock(Vec3i{5, 10, 5}, 1); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("set on unloaded chunk: err = %v, want ErrNotLoaded", err)
	}
	if w.store.Loaded(ChunkKey{0, 0}) {
		t.Fatalf("failed access loaded the chunk as a side effect")
	}
}

func TestChunkStore_GenerationIsDeterministic(t *testing.T) {
	a := newTestWorld(t, 42)
	b := newTestWorld(t, 42)
	other := newTestWorld(t, 43)

	for _, k := range []ChunkKey{{0, 0}, {-1, 3}, {7, -2}} {
		ca, err := a.store.Load(k.CX, k.CZ)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		cb, _ := b.store.Load(k.CX, k.CZ)
		if ca.Digest() != cb.Digest() {
			t.Fatalf("chunk %v differs across worlds with the same seed", k)
		}
		co, _ := other.store.Load(k.CX, k.CZ)
		if ca.Digest() == co.Digest() {
			t.Fatalf("chunk %v identical across different seeds", k)
		}
	}
}

func TestChunkStore_SetBlockSwapsEntityState(t *testing.T) {
	w := newTestWorld(t, 42)
	flattenChunk(t, w, 0, 0)
	pos := Vec3i{8, 10, 8}

	mustSet(t, w, pos, "CHEST")
	e, err := w.store.Entity(pos)
	if err != nil || e == nil {
		t.Fatalf("entity after chest place: %v, err=%v", e, err)
	}
	if e.Kind != EntityChest || len(e.Inv.Slots) != ChestSlots {
		t.Fatalf("chest entity = kind %q with %d slots, want %q with %d", e.Kind, len(e.Inv.Slots), EntityChest, ChestSlots)
	}
	fill(t, &e.Inv, "STONE", 3)

	// Replacing the block discards the old state and creates the shape
	// the new kind needs.
	mustSet(t, w, pos, "HOPPER")
	e, _ = w.store.Entity(pos)
	if e.Kind != EntityHopper || len(e.Inv.Slots) != HopperSlots {
		t.Fatalf("hopper entity = kind %q with %d slots, want %q with %d", e.Kind, len(e.Inv.Slots), EntityHopper, HopperSlots)
	}
	if e.Inv.Total() != 0 {
		t.Fatalf("replacement entity inherited %d items", e.Inv.Total())
	}

	mustSet(t, w, pos, "AIR")
	e, _ = w.store.Entity(pos)
	if e != nil {
		t.Fatalf("entity survived block break: %+v", e)
	}
}

func TestChunkStore_UnloadSavesDirtyAndDrops(t *testing.T) {
	st := newMemStorage()
	w := New(Config{Seed: 42, Tuning: testTuning(), Storage: st}, testCatalogs())
	flattenChunk(t, w, 0, 0)
	mustSet(t, w, Vec3i{1, 10, 1}, "GLOWSTONE")
	drainLights(w)

	c, _ := w.store.Get(ChunkKey{0, 0})
	digest := c.Digest()

	if err := w.store.Unload(0, 0); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if w.store.Loaded(ChunkKey{0, 0}) {
		t.Fatalf("chunk still resident after unload")
	}
	if st.saveHits == 0 {
		t.Fatalf("dirty chunk dropped without a save")
	}

	re, err := w.store.Load(0, 0)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if re.Digest() != digest {
		t.Fatalf("reloaded chunk digest differs from saved state")
	}
	if got, _ := w.store.Block(Vec3i{1, 10, 1}); got != blockID(t, w, "GLOWSTONE") {
		t.Fatalf("edit lost across unload/load cycle")
	}
}

func TestChunkStore_UnloadSurfacesStorageFailure(t *testing.T) {
	st := newMemStorage()
	w := New(Config{Seed: 42, Tuning: testTuning(), Storage: st}, testCatalogs())
	flattenChunk(t, w, 0, 0)

	st.saveErr = fmt.Errorf("%w: disk gone", ErrStorage)
	err := w.store.Unload(0, 0)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("unload err = %v, want ErrStorage", err)
	}
	// A failed save must not drop the chunk.
	if !w.store.Loaded(ChunkKey{0, 0}) {
		t.Fatalf("chunk evicted although its save failed")
	}
}

func TestChunkStore_RejectsHeightMismatchedRecord(t *testing.T) {
	st := newMemStorage()
	st.saved[ChunkKey{0, 0}] = NewChunk(0, 0, 32)
	w := New(Config{Seed: 42, Tuning: testTuning(), Storage: st}, testCatalogs())

	// The world is 64 tall; a 32-tall record must fail as a storage
	// error instead of becoming resident with short arrays.
	_, err := w.store.Load(0, 0)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("load of height-32 record into height-64 world: err = %v, want ErrStorage", err)
	}
	if w.store.Loaded(ChunkKey{0, 0}) {
		t.Fatalf("mismatched record became resident")
	}

	// The failure is isolated to that chunk.
	if _, err := w.store.Load(1, 0); err != nil {
		t.Fatalf("neighboring chunk load: %v", err)
	}
}

func TestChunkStore_CopyRegionSpansChunks(t *testing.T) {
	w := newTestWorld(t, 42)
	flattenChunk(t, w, 0, 0)
	flattenChunk(t, w, 1, 0)
	mustSet(t, w, Vec3i{15, 10, 2}, "STONE")
	mustSet(t, w, Vec3i{16, 10, 2}, "SAND")

	got, err := w.store.CopyRegion(Vec3i{15, 10, 2}, Vec3i{16, 10, 2})
	if err != nil {
		t.Fatalf("copy region: %v", err)
	}
	want := []uint16{blockID(t, w, "STONE"), blockID(t, w, "SAND")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("region = %v, want %v", got, want)
	}

	// Touching an unloaded chunk fails the whole copy.
	if _, err := w.store.CopyRegion(Vec3i{15, 10, 2}, Vec3i{40, 10, 2}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("copy into unloaded chunk: err = %v, want ErrNotLoaded", err)
	}
}

func TestChunkStore_OutOfBoundsReadsAir(t *testing.T) {
	w := newTestWorld(t, 42)
	flattenChunk(t, w, 0, 0)

	if got, err := w.store.Block(Vec3i{5, -1, 5}); err != nil || got != 0 {
		t.Fatalf("below world = (%d, %v), want air", got, err)
	}
	if got, err := w.store.Block(Vec3i{5, w.store.Height(), 5}); err != nil || got != 0 {
		t.Fatalf("above world = (%d, %v), want air", got, err)
	}
}
