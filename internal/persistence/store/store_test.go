package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"voxelforge.dev/internal/sim/encoding"
	"voxelforge.dev/internal/sim/world"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func buildChunk(t *testing.T) *world.Chunk {
	t.Helper()
	c := world.NewChunk(3, -2, 32)
	for i := range c.Blocks {
		c.Blocks[i] = uint16(i % 7)
	}
	for i := range c.SkyLight {
		c.SkyLight[i] = uint8(i % 16)
		c.BlockLight[i] = uint8((i * 3) % 16)
	}

	pos := world.Vec3i{X: 3*16 + 4, Y: 10, Z: -2*16 + 5}
	h := world.NewBlockEntity(world.EntityHopper, pos)
	h.Cooldown = 5
	h.Inv.Slots[0].Item = "STONE"
	h.Inv.Slots[0].Count = 12
	c.Entities[pos] = h

	cpos := world.Vec3i{X: 3*16 + 4, Y: 11, Z: -2*16 + 5}
	ch := world.NewBlockEntity(world.EntityChest, cpos)
	ch.Inv.Slots[26].Item = "COAL_ORE"
	ch.Inv.Slots[26].Count = 64
	c.Entities[cpos] = ch
	return c
}

func TestStore_ChunkRoundTrip(t *testing.T) {
	s := openTestStore(t)
	c := buildChunk(t)
	want := c.Digest()

	if err := s.SaveChunk(c); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadChunk(3, -2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatalf("saved chunk not found")
	}
	if got.Digest() != want {
		t.Fatalf("digest mismatch after round trip")
	}

	h := got.Entities[world.Vec3i{X: 3*16 + 4, Y: 10, Z: -2*16 + 5}]
	if h == nil || h.Kind != world.EntityHopper || h.Cooldown != 5 {
		t.Fatalf("hopper entity = %+v, want cooldown 5", h)
	}
	if h.Inv.Slots[0].Item != "STONE" || h.Inv.Slots[0].Count != 12 {
		t.Fatalf("hopper slot 0 = %+v", h.Inv.Slots[0])
	}
}

func TestStore_MissingChunkIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	c, err := s.LoadChunk(9, 9)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if c != nil {
		t.Fatalf("load missing returned a chunk")
	}
}

func TestStore_UnknownVersionIsRejectedUntouched(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	// A record from some future build: valid magic, version 99.
	path := filepath.Join(dir, "chunks", "c.0.0.vcz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	payload := `{"magic":"vfz-chunk","version":99,"cx":0,"cz":0}` + "\n" + "future body"
	if _, err := enc.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close enc: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	before, _ := os.ReadFile(path)

	_, err = s.LoadChunk(0, 0)
	if !errors.Is(err, world.ErrUnsupportedVersion) {
		t.Fatalf("load future record: err = %v, want ErrUnsupportedVersion", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatalf("rejected record was modified on disk")
	}
}

func TestStore_RejectsCorruptSlotCounts(t *testing.T) {
	s := openTestStore(t)

	n := 16 * 16 * 32
	base := ChunkRecordV1{
		Header:     Header{Magic: chunkMagic, Version: chunkVersion, CX: 0, CZ: 0},
		Height:     32,
		Blocks:     encoding.EncodeRLE(make([]uint16, n)),
		SkyLight:   encoding.EncodeRLEBytes(make([]uint8, n)),
		BlockLight: encoding.EncodeRLEBytes(make([]uint8, n)),
	}

	cases := []struct {
		name  string
		slots []SlotV1
	}{
		{"negative count", []SlotV1{{Item: "STONE", Count: -5}}},
		{"count above stack limit", []SlotV1{{Item: "DIRT", Count: 100000}}},
		{"count without item", []SlotV1{{Item: "", Count: 3}}},
		{"more slots than capacity", make([]SlotV1, world.HopperSlots+1)},
	}
	for _, tc := range cases {
		rec := base
		rec.Entities = []EntityV1{{Pos: [3]int{4, 10, 5}, Kind: world.EntityHopper, Slots: tc.slots}}
		if err := writeRecord(s.chunkPath(0, 0), rec.Header, &rec); err != nil {
			t.Fatalf("%s: write record: %v", tc.name, err)
		}

		_, err := s.LoadChunk(0, 0)
		if !errors.Is(err, world.ErrStorage) {
			t.Fatalf("%s: load err = %v, want ErrStorage", tc.name, err)
		}
	}
}

func TestStore_CorruptRecordIsStorageError(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	path := filepath.Join(dir, "chunks", "c.1.1.vcz")
	if err := os.WriteFile(path, []byte("this is not zstd"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	_, err = s.LoadChunk(1, 1)
	if !errors.Is(err, world.ErrStorage) {
		t.Fatalf("load corrupt record: err = %v, want ErrStorage", err)
	}
}

func TestStore_WorldStateRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, found, err := s.LoadWorldState(); err != nil || found {
		t.Fatalf("first boot state = found=%v err=%v, want absent", found, err)
	}

	in := WorldStateV1{
		Seed:          42,
		Tick:          123456,
		Weather:       "RAIN",
		WeatherUntil:  130000,
		Transitions:   7,
		PaletteDigest: "abc123",
	}
	if err := s.SaveWorldState(in); err != nil {
		t.Fatalf("save state: %v", err)
	}

	out, found, err := s.LoadWorldState()
	if err != nil || !found {
		t.Fatalf("load state = found=%v err=%v", found, err)
	}
	if out.Seed != in.Seed || out.Tick != in.Tick || out.Weather != in.Weather ||
		out.WeatherUntil != in.WeatherUntil || out.Transitions != in.Transitions ||
		out.PaletteDigest != in.PaletteDigest {
		t.Fatalf("state round trip: got %+v, want %+v", out, in)
	}
}

func TestIndex_RecordsSaves(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}

	s, err := Open(dir, idx)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	c := buildChunk(t)
	if err := s.SaveChunk(c); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := idx.SetMeta("seed", "42"); err != nil {
		t.Fatalf("set meta: %v", err)
	}

	// Close drains the writer, so the row is visible afterwards.
	if err := idx.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}

	idx2, err := OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	defer idx2.Close()
	n, err := idx2.SaveCount(3, -2)
	if err != nil {
		t.Fatalf("save count: %v", err)
	}
	if n != 1 {
		t.Fatalf("save count = %d, want 1", n)
	}
}
