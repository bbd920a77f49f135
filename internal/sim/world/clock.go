package world

import (
	"math"

	"voxelforge.dev/internal/sim/tuning"
)

// Weather states in escalation order.
const (
	WeatherClear = "CLEAR"
	WeatherRain  = "RAIN"
	WeatherStorm = "STORM"
)

// IsWeatherState reports whether s names a valid weather state.
func IsWeatherState(s string) bool {
	_, ok := weatherSkyScale[s]
	return ok
}

// weatherSkyScale maps a weather state to the skylight damping it
// applies, in permille.
var weatherSkyScale = map[string]int{
	WeatherClear: 1000,
	WeatherRain:  850,
	WeatherStorm: 780,
}

// Clock tracks the day cycle and weather. Both are pure functions of
// the seed and the tick count: replaying the same ticks on the same
// seed yields the same sky.
type Clock struct {
	seed     int64
	dayTicks int
	wt       tuning.WeatherTuning

	tick         uint64
	weather      string
	weatherUntil uint64
	transitions  int
}

func NewClock(seed int64, dayTicks int, wt tuning.WeatherTuning) *Clock {
	c := &Clock{
		seed:     seed,
		dayTicks: dayTicks,
		wt:       wt,
		weather:  WeatherClear,
	}
	c.weatherUntil = c.rollDuration()
	return c
}

func (c *Clock) Tick() uint64    { return c.tick }
func (c *Clock) Weather() string { return c.weather }

// TimeOfDay is the fraction of the current day in [0, 1). Tick 0 is
// sunrise, 0.25 noon, 0.5 sunset, 0.75 midnight.
func (c *Clock) TimeOfDay() float64 {
	return float64(c.tick%uint64(c.dayTicks)) / float64(c.dayTicks)
}

// SunElevation is sin of the sun angle: 1 at noon, -1 at midnight.
func (c *Clock) SunElevation() float64 {
	return math.Sin(2 * math.Pi * c.TimeOfDay())
}

// daylightScalar clamps elevation to [0, 1] with a 0.2 floor so nights
// never go fully black.
func (c *Clock) daylightScalar() float64 {
	s := c.SunElevation()
	if s < 0 {
		s = 0
	}
	if s < 0.2 {
		s = 0.2
	}
	return s
}

// EffectiveSkylight scales a stored skylight value by time of day and
// weather. Stored values assume clear noon.
func (c *Clock) EffectiveSkylight(stored uint8) uint8 {
	scale := c.daylightScalar() * float64(weatherSkyScale[c.weather]) / 1000
	v := math.Round(float64(stored) * scale)
	if v > 15 {
		v = 15
	}
	return uint8(v)
}

// ClockState is the resumable portion of the clock.
type ClockState struct {
	Tick         uint64
	Weather      string
	WeatherUntil uint64
	Transitions  int
}

func (c *Clock) State() ClockState {
	return ClockState{
		Tick:         c.tick,
		Weather:      c.weather,
		WeatherUntil: c.weatherUntil,
		Transitions:  c.transitions,
	}
}

func (c *Clock) Restore(st ClockState) {
	c.tick = st.Tick
	if IsWeatherState(st.Weather) {
		c.weather = st.Weather
	}
	c.weatherUntil = st.WeatherUntil
	c.transitions = st.Transitions
}

// Advance moves the clock one tick. When the active weather spell
// expires it rolls the next state and reports the change.
func (c *Clock) Advance() (old, now string, changed bool) {
	c.tick++
	if c.tick < c.weatherUntil {
		return "", "", false
	}
	old = c.weather
	c.transitions++
	c.weather = c.rollState()
	c.weatherUntil = c.tick + c.rollDuration()
	if c.weather == old {
		return "", "", false
	}
	return old, c.weather, true
}

func (c *Clock) rollState() string {
	roll := int(hash2(c.seed^0x57ea7, c.transitions, 0) % 1000)
	switch {
	case roll < c.wt.StormPermille:
		return WeatherStorm
	case roll < c.wt.StormPermille+c.wt.RainPermille:
		return WeatherRain
	default:
		return WeatherClear
	}
}

func (c *Clock) rollDuration() uint64 {
	span := c.wt.MaxDurationTicks - c.wt.MinDurationTicks + 1
	if span < 1 {
		span = 1
	}
	h := hash2(c.seed^0xd07a, c.transitions, 1)
	return uint64(c.wt.MinDurationTicks) + h%uint64(span)
}
