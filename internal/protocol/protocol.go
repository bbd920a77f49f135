package protocol

import "encoding/json"

const Version = "1.0"

// Message types carried over the observer/bridge socket.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeRegion  = "REGION"
	TypeEvent   = "EVENT"
	TypeRequest = "REQUEST"
	TypeResult  = "RESULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// ItemStack is one stack of a single item kind. Count is always in
// [1, stack limit]; an empty slot is represented by the zero value.
type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// HelloMsg opens an observer session.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name,omitempty"`
}

// WelcomeMsg answers a HELLO with the world parameters an observer
// needs to interpret region payloads.
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
	PaletteDigest   string      `json:"palette_digest"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	ChunkSize  [3]int `json:"chunk_size"`
	Height     int    `json:"height"`
	DayTicks   int    `json:"day_ticks"`
	Seed       int64  `json:"seed"`
}

// RegionMsg is a read-only snapshot of one chunk: block ids plus both
// light channels, RLE-encoded. No mutation path exists on this surface.
type RegionMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tick            uint64   `json:"tick"`
	CX              int      `json:"cx"`
	CZ              int      `json:"cz"`
	Height          int      `json:"height"`
	Blocks          string   `json:"blocks"`      // RLE base64
	SkyLight        string   `json:"sky_light"`   // RLE base64
	BlockLight      string   `json:"block_light"` // RLE base64
	Entities        [][3]int `json:"entities,omitempty"`
}

// EventMsg carries one discrete world event (block break/place, weather
// change) to audio/UI subscribers.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Event           string `json:"event"`
	Pos             [3]int `json:"pos,omitempty"`
	Detail          string `json:"detail,omitempty"`
}

// Request is one automation-bridge command. The core validates and
// applies it through the same chunk-store API as internal tick logic.
type Request struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`

	Pos     [3]int `json:"pos,omitempty"`
	BlockID string `json:"block_id,omitempty"`
	CX      int    `json:"cx,omitempty"`
	CZ      int    `json:"cz,omitempty"`
}

// Bridge operations.
const (
	OpGetBlock      = "GET_BLOCK"
	OpSetBlock      = "SET_BLOCK"
	OpGetLight      = "GET_LIGHT"
	OpReadInventory = "READ_INVENTORY"
	OpLoadChunk     = "LOAD_CHUNK"
	OpUnloadChunk   = "UNLOAD_CHUNK"
	OpQueryClock    = "QUERY_CLOCK"
)

// Result answers one Request. OK=false carries a stable error code from
// errors.go and a human-readable reason.
type Result struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Reason          string `json:"reason,omitempty"`

	BlockID    string      `json:"block_id,omitempty"`
	SkyLight   int         `json:"sky_light,omitempty"`
	BlockLight int         `json:"block_light,omitempty"`
	Slots      []ItemStack `json:"slots,omitempty"`
	Tick       uint64      `json:"tick,omitempty"`
	TimeOfDay  float64     `json:"time_of_day,omitempty"`
	Weather    string      `json:"weather,omitempty"`
}
