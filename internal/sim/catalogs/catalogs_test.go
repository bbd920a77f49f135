package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MatchesConfigs(t *testing.T) {
	cats, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cats.Blocks.Palette[0] != "AIR" || cats.Blocks.Index["AIR"] != 0 {
		t.Fatalf("AIR must be palette index 0")
	}
	if cats.Blocks.Entity(cats.Blocks.Index["CHEST"]) != "CHEST" {
		t.Fatalf("chest block carries no entity kind")
	}
	if cats.Blocks.Entity(cats.Blocks.Index["HOPPER"]) != "HOPPER" {
		t.Fatalf("hopper block carries no entity kind")
	}
	if got := cats.Blocks.Emission(cats.Blocks.Index["GLOWSTONE"]); got != 15 {
		t.Fatalf("glowstone emission = %d, want 15", got)
	}
	if !cats.Blocks.Opaque(cats.Blocks.Index["STONE"]) {
		t.Fatalf("stone must be opaque")
	}
	if cats.Blocks.Opaque(cats.Blocks.Index["GLASS"]) {
		t.Fatalf("glass must pass light")
	}
	if cats.Blocks.PaletteDigest == "" {
		t.Fatalf("empty palette digest")
	}
}

func TestBuiltin_AgreesWithConfigs(t *testing.T) {
	fromFile, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	builtin := Builtin()
	if fromFile.Blocks.PaletteDigest != builtin.Blocks.PaletteDigest {
		t.Fatalf("builtin palette diverged from configs/blocks.json")
	}
}

func TestLoad_RejectsBadPalettes(t *testing.T) {
	write := func(t *testing.T, body string) string {
		t.Helper()
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "blocks.json"), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return dir
	}

	if _, err := Load(write(t, `[{"id":"STONE"}]`)); err == nil {
		t.Fatalf("palette without leading AIR accepted")
	}
	if _, err := Load(write(t, `[{"id":"AIR"},{"id":"X"},{"id":"X"}]`)); err == nil {
		t.Fatalf("duplicate id accepted")
	}
	if _, err := Load(write(t, `[{"id":"AIR"},{"id":"SUN","emission":99}]`)); err == nil {
		t.Fatalf("emission above 15 accepted")
	}
	if _, err := Load(write(t, `not json`)); err == nil {
		t.Fatalf("malformed json accepted")
	}
}
