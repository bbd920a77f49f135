package world

// Discrete world events pushed to observers and the journal.
const (
	EvBlockPlace    = "BLOCK_PLACE"
	EvBlockBreak    = "BLOCK_BREAK"
	EvWeatherChange = "WEATHER_CHANGE"
	EvChunkLoad     = "CHUNK_LOAD"
	EvChunkUnload   = "CHUNK_UNLOAD"
	EvItemMove      = "ITEM_MOVE"
)

type Event struct {
	Tick   uint64 `json:"t"`
	Type   string `json:"type"`
	Pos    [3]int `json:"pos,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// EventSink receives every emitted event. Implementations must not
// block; the world loop calls them inline.
type EventSink interface {
	Emit(ev Event)
}

// multiSink fans one event out to several sinks.
type multiSink []EventSink

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Sinks combines sinks into one; nils are skipped.
func Sinks(sinks ...EventSink) EventSink {
	var m multiSink
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

// CollectSink buffers events for tests.
type CollectSink struct {
	Events []Event
}

func (c *CollectSink) Emit(ev Event) { c.Events = append(c.Events, ev) }
