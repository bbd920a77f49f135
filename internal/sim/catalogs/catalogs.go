package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
}

// BlockDef describes one block kind. Entity names the block-entity
// state a placed block of this kind must carry ("CHEST", "HOPPER"),
// empty for plain blocks.
type BlockDef struct {
	ID       string `json:"id"`
	Solid    bool   `json:"solid"`
	Opaque   bool   `json:"opaque"`
	Emission uint8  `json:"emission,omitempty"`
	Entity   string `json:"entity,omitempty"`
}

// Load reads configs/blocks.json from dir. Palette order is the file
// order; index 0 must be AIR so that zeroed chunk storage means air.
func Load(dir string) (*Catalogs, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "blocks.json"))
	if err != nil {
		return nil, fmt.Errorf("read blocks.json: %w", err)
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	if len(defs) == 0 || defs[0].ID != "AIR" {
		return nil, fmt.Errorf("blocks.json: palette must start with AIR")
	}

	bc := BlockCatalog{
		Index: map[string]uint16{},
		Defs:  map[string]BlockDef{},
	}
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("blocks.json: entry %d missing id", i)
		}
		if _, dup := bc.Index[d.ID]; dup {
			return nil, fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		if d.Emission > 15 {
			return nil, fmt.Errorf("blocks.json: %s emission %d out of range", d.ID, d.Emission)
		}
		bc.Palette = append(bc.Palette, d.ID)
		bc.Index[d.ID] = uint16(i)
		bc.Defs[d.ID] = d
	}
	bc.PaletteDigest = digestStrings(bc.Palette)

	return &Catalogs{Blocks: bc}, nil
}

// Builtin returns the default palette without touching the filesystem.
// Tests and embedded hosts use this; cmd/server prefers the configs dir.
func Builtin() *Catalogs {
	defs := []BlockDef{
		{ID: "AIR"},
		{ID: "STONE", Solid: true, Opaque: true},
		{ID: "DIRT", Solid: true, Opaque: true},
		{ID: "GRASS", Solid: true, Opaque: true},
		{ID: "SAND", Solid: true, Opaque: true},
		{ID: "GRAVEL", Solid: true, Opaque: true},
		{ID: "OAK_LOG", Solid: true, Opaque: true},
		{ID: "GLASS", Solid: true},
		{ID: "COAL_ORE", Solid: true, Opaque: true},
		{ID: "IRON_ORE", Solid: true, Opaque: true},
		{ID: "TORCH", Emission: 14},
		{ID: "GLOWSTONE", Solid: true, Emission: 15},
		{ID: "LAVA", Emission: 15},
		{ID: "CHEST", Solid: true, Entity: "CHEST"},
		{ID: "HOPPER", Solid: true, Entity: "HOPPER"},
	}
	bc := BlockCatalog{
		Index: map[string]uint16{},
		Defs:  map[string]BlockDef{},
	}
	for i, d := range defs {
		bc.Palette = append(bc.Palette, d.ID)
		bc.Index[d.ID] = uint16(i)
		bc.Defs[d.ID] = d
	}
	bc.PaletteDigest = digestStrings(bc.Palette)
	return &Catalogs{Blocks: bc}
}

// Opaque reports whether the block id blocks light entirely.
func (c *BlockCatalog) Opaque(id uint16) bool {
	if int(id) >= len(c.Palette) {
		return false
	}
	return c.Defs[c.Palette[id]].Opaque
}

// Emission returns the block-light emission level (0-15) for id.
func (c *BlockCatalog) Emission(id uint16) uint8 {
	if int(id) >= len(c.Palette) {
		return 0
	}
	return c.Defs[c.Palette[id]].Emission
}

// Entity returns the block-entity kind required by id, or "".
func (c *BlockCatalog) Entity(id uint16) string {
	if int(id) >= len(c.Palette) {
		return ""
	}
	return c.Defs[c.Palette[id]].Entity
}

func (c *BlockCatalog) Name(id uint16) string {
	if int(id) >= len(c.Palette) {
		return ""
	}
	return c.Palette[id]
}

func digestStrings(ss []string) string {
	sorted := make([]string, len(ss))
	copy(sorted, ss)
	sort.Strings(sorted)
	h := sha256.New()
	for _, s := range sorted {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
