package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`
	DayTicks   int `yaml:"day_ticks"`
	Height     int `yaml:"height"`
	BoundaryR  int `yaml:"world_boundary_r"`

	// Lighting queue entries drained per tick.
	LightBudget int `yaml:"light_budget"`

	// Dirty chunks are flushed to the saver every this many ticks.
	FlushEveryTicks int `yaml:"flush_every_ticks"`

	Weather WeatherTuning `yaml:"weather"`
}

type WeatherTuning struct {
	MinDurationTicks int `yaml:"min_duration_ticks"`
	MaxDurationTicks int `yaml:"max_duration_ticks"`
	// Out of 1000; the remainder is CLEAR.
	RainPermille  int `yaml:"rain_permille"`
	StormPermille int `yaml:"storm_permille"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.withDefaults(), nil
}

func Defaults() Tuning {
	return Tuning{}.withDefaults()
}

func (t Tuning) withDefaults() Tuning {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 20
	}
	if t.DayTicks <= 0 {
		t.DayTicks = 24000
	}
	if t.Height <= 0 {
		t.Height = 64
	}
	if t.LightBudget <= 0 {
		t.LightBudget = 4096
	}
	if t.FlushEveryTicks <= 0 {
		t.FlushEveryTicks = 600
	}
	if t.Weather.MinDurationTicks <= 0 {
		t.Weather.MinDurationTicks = 6000
	}
	if t.Weather.MaxDurationTicks < t.Weather.MinDurationTicks {
		t.Weather.MaxDurationTicks = t.Weather.MinDurationTicks * 3
	}
	if t.Weather.RainPermille <= 0 {
		t.Weather.RainPermille = 250
	}
	if t.Weather.StormPermille <= 0 {
		t.Weather.StormPermille = 80
	}
	return t
}
