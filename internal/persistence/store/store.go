// Package store persists chunks and world state as versioned zstd
// records, one file per chunk, with an optional sqlite index of save
// activity for operators.
package store

import (
	"bufio"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxelforge.dev/internal/sim/encoding"
	"voxelforge.dev/internal/sim/world"
)

const (
	chunkMagic   = "vfz-chunk"
	stateMagic   = "vfz-state"
	chunkVersion = 1
	stateVersion = 1
)

// Header is the JSON first line of every record. It is readable with
// zstdcat|head even when the gob body evolves.
type Header struct {
	Magic   string `json:"magic"`
	Version int    `json:"version"`
	CX      int    `json:"cx,omitempty"`
	CZ      int    `json:"cz,omitempty"`
}

// ChunkRecordV1 is the gob body of a chunk file. Blocks and both light
// channels are RLE-encoded; generated-and-untouched chunks compress to
// almost nothing.
type ChunkRecordV1 struct {
	Header Header

	Height     int
	Blocks     string
	SkyLight   string
	BlockLight string
	Entities   []EntityV1
}

type EntityV1 struct {
	Pos      [3]int
	Kind     string
	Cooldown int
	Slots    []SlotV1
}

type SlotV1 struct {
	Item  string
	Count int
}

// WorldStateV1 captures everything outside the chunks needed to resume
// a world: the clock, the weather spell and the palette it was saved
// against.
type WorldStateV1 struct {
	Header Header

	Seed          int64
	Tick          uint64
	Weather       string
	WeatherUntil  uint64
	Transitions   int
	PaletteDigest string
}

// Store implements world.Storage on a directory tree:
//
//	<dir>/chunks/c.<cx>.<cz>.vcz
//	<dir>/world.state.vcz
//	<dir>/index.db (optional)
type Store struct {
	dir string
	idx *Index // nil when indexing is disabled
}

func Open(dir string, idx *Index) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "chunks"), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", world.ErrStorage, err)
	}
	return &Store{dir: dir, idx: idx}, nil
}

func (s *Store) chunkPath(cx, cz int) string {
	return filepath.Join(s.dir, "chunks", fmt.Sprintf("c.%d.%d.vcz", cx, cz))
}

func (s *Store) statePath() string {
	return filepath.Join(s.dir, "world.state.vcz")
}

// SaveChunk writes the chunk as a v1 record and notes the save in the
// index.
func (s *Store) SaveChunk(c *world.Chunk) error {
	rec := ChunkRecordV1{
		Header:     Header{Magic: chunkMagic, Version: chunkVersion, CX: c.CX, CZ: c.CZ},
		Height:     c.Height,
		Blocks:     encoding.EncodeRLE(c.Blocks),
		SkyLight:   encoding.EncodeRLEBytes(c.SkyLight),
		BlockLight: encoding.EncodeRLEBytes(c.BlockLight),
	}
	for _, pos := range c.EntityKeys() {
		e := c.Entities[pos]
		ev := EntityV1{
			Pos:      [3]int{pos.X, pos.Y, pos.Z},
			Kind:     e.Kind,
			Cooldown: e.Cooldown,
		}
		for _, slot := range e.Inv.Slots {
			ev.Slots = append(ev.Slots, SlotV1{Item: slot.Item, Count: slot.Count})
		}
		rec.Entities = append(rec.Entities, ev)
	}

	if err := writeRecord(s.chunkPath(c.CX, c.CZ), rec.Header, &rec); err != nil {
		return err
	}
	if s.idx != nil {
		d := c.Digest()
		s.idx.RecordSave(c.CX, c.CZ, hex.EncodeToString(d[:]))
	}
	return nil
}

// LoadChunk restores a chunk record, or returns (nil, nil) when no
// record exists so the caller generates instead. A record with an
// unknown version tag fails with ErrUnsupportedVersion and is left
// exactly as it was on disk.
func (s *Store) LoadChunk(cx, cz int) (*world.Chunk, error) {
	var rec ChunkRecordV1
	found, err := readRecord(s.chunkPath(cx, cz), chunkMagic, chunkVersion, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	c := world.NewChunk(cx, cz, rec.Height)
	blocks, err := encoding.DecodeRLE(rec.Blocks)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d,%d blocks: %v", world.ErrStorage, cx, cz, err)
	}
	sky, err := encoding.DecodeRLEBytes(rec.SkyLight)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d,%d sky light: %v", world.ErrStorage, cx, cz, err)
	}
	blk, err := encoding.DecodeRLEBytes(rec.BlockLight)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d,%d block light: %v", world.ErrStorage, cx, cz, err)
	}
	want := world.ChunkSide * world.ChunkSide * rec.Height
	if len(blocks) != want || len(sky) != want || len(blk) != want {
		return nil, fmt.Errorf("%w: chunk %d,%d: array sizes %d/%d/%d, want %d", world.ErrStorage, cx, cz, len(blocks), len(sky), len(blk), want)
	}
	copy(c.Blocks, blocks)
	copy(c.SkyLight, sky)
	copy(c.BlockLight, blk)

	for _, ev := range rec.Entities {
		pos := world.Vec3i{X: ev.Pos[0], Y: ev.Pos[1], Z: ev.Pos[2]}
		e := world.NewBlockEntity(ev.Kind, pos)
		if e == nil {
			return nil, fmt.Errorf("%w: chunk %d,%d: unknown entity kind %q", world.ErrStorage, cx, cz, ev.Kind)
		}
		e.Cooldown = ev.Cooldown
		if len(ev.Slots) > len(e.Inv.Slots) {
			return nil, fmt.Errorf("%w: chunk %d,%d: %s at %v has %d slots, capacity %d",
				world.ErrStorage, cx, cz, ev.Kind, pos, len(ev.Slots), len(e.Inv.Slots))
		}
		for i, slot := range ev.Slots {
			if !validStack(slot) {
				return nil, fmt.Errorf("%w: chunk %d,%d: %s at %v slot %d: bad stack %q x%d",
					world.ErrStorage, cx, cz, ev.Kind, pos, i, slot.Item, slot.Count)
			}
			e.Inv.Slots[i].Item = slot.Item
			e.Inv.Slots[i].Count = slot.Count
		}
		c.Entities[pos] = e
	}
	return c, nil
}

// validStack accepts the zero value (empty slot) or a named item with
// a count inside the stack limit. Anything else is a corrupt record.
func validStack(s SlotV1) bool {
	if s.Count == 0 {
		return s.Item == ""
	}
	return s.Item != "" && s.Count > 0 && s.Count <= world.MaxStack
}

// SaveWorldState writes the resume record.
func (s *Store) SaveWorldState(st WorldStateV1) error {
	st.Header = Header{Magic: stateMagic, Version: stateVersion}
	return writeRecord(s.statePath(), st.Header, &st)
}

// LoadWorldState reads the resume record; found is false on first boot.
func (s *Store) LoadWorldState() (st WorldStateV1, found bool, err error) {
	found, err = readRecord(s.statePath(), stateMagic, stateVersion, &st)
	return st, found, err
}

func writeRecord(path string, hdr Header, body any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", world.ErrStorage, err)
	}

	werr := func() error {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		bw := bufio.NewWriterSize(enc, 64*1024)

		hb, _ := json.Marshal(hdr)
		if _, err := bw.Write(hb); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if err := gob.NewEncoder(bw).Encode(body); err != nil {
			return fmt.Errorf("gob encode: %v", err)
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		return enc.Close()
	}()
	if werr != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", world.ErrStorage, path, werr)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", world.ErrStorage, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %s: %v", world.ErrStorage, path, err)
	}
	return nil
}

// readRecord validates magic and version from the header line before
// decoding the body, so records from a newer build fail cleanly.
func readRecord(path, magic string, version int, body any) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s: %v", world.ErrStorage, path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", world.ErrStorage, path, err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return false, fmt.Errorf("%w: %s: truncated header: %v", world.ErrStorage, path, err)
	}
	var hdr Header
	if err := json.Unmarshal(line, &hdr); err != nil {
		return false, fmt.Errorf("%w: %s: bad header: %v", world.ErrStorage, path, err)
	}
	if hdr.Magic != magic {
		return false, fmt.Errorf("%w: %s: magic %q, want %q", world.ErrStorage, path, hdr.Magic, magic)
	}
	if hdr.Version != version {
		return false, fmt.Errorf("%w: %s: version %d", world.ErrUnsupportedVersion, path, hdr.Version)
	}
	if err := gob.NewDecoder(br).Decode(body); err != nil {
		return false, fmt.Errorf("%w: %s: gob decode: %v", world.ErrStorage, path, err)
	}
	return true, nil
}
