package world

import (
	"testing"

	"voxelforge.dev/internal/sim/catalogs"
	"voxelforge.dev/internal/sim/tuning"
)

func testTuning() tuning.Tuning { return tuning.Defaults() }

func testCatalogs() *catalogs.Catalogs { return catalogs.Builtin() }

func newTestWorld(t *testing.T, seed int64) *World {
	t.Helper()
	return New(Config{Seed: seed, Tuning: testTuning()}, testCatalogs())
}

// flattenChunk loads (cx, cz) and rewrites it to pure air so lighting
// scenarios start from a known sky-lit state.
func flattenChunk(t *testing.T, w *World, cx, cz int) *Chunk {
	t.Helper()
	c, err := w.store.Load(cx, cz)
	if err != nil {
		t.Fatalf("load chunk %d,%d: %v", cx, cz, err)
	}
	for i := range c.Blocks {
		c.Blocks[i] = 0
	}
	c.markDirty()
	w.light.seedChunk(c)
	drainLights(w)
	return c
}

func drainLights(w *World) {
	for w.light.PendingLen() > 0 {
		w.light.ProcessPending(1 << 20)
	}
}

func mustSet(t *testing.T, w *World, pos Vec3i, name string) {
	t.Helper()
	id, ok := w.store.cat.Blocks.Index[name]
	if !ok {
		t.Fatalf("unknown block %q", name)
	}
	if err := w.SetBlockNamed(pos, id); err != nil {
		t.Fatalf("set %s at %v: %v", name, pos, err)
	}
}

func blockID(t *testing.T, w *World, name string) uint16 {
	t.Helper()
	id, ok := w.store.cat.Blocks.Index[name]
	if !ok {
		t.Fatalf("unknown block %q", name)
	}
	return id
}

// fill puts count units of item into inv one at a time.
func fill(t *testing.T, inv *Inventory, item string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		if !inv.InsertOne(item) {
			t.Fatalf("inventory full after %d of %d %s", i, count, item)
		}
	}
}
