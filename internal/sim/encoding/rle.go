package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of palette ids into base64(varint pairs).
// The pairs are (block_id, run_len) repeated.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ids) {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// maxDecodedLen caps a decoded stream well above any chunk-sized
// array, so a corrupt run length fails instead of allocating.
const maxDecodedLen = 1 << 20

func DecodeRLE(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("block id too large: %d", b)
		}
		if run > maxDecodedLen || len(out)+int(run) > maxDecodedLen {
			return nil, fmt.Errorf("run of %d overflows stream at %d", run, i)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, uint16(b))
		}
	}
	return out, nil
}

// EncodeRLEBytes is the uint8 variant used for light arrays (0-15).
func EncodeRLEBytes(vals []uint8) string {
	wide := make([]uint16, len(vals))
	for i, v := range vals {
		wide[i] = uint16(v)
	}
	return EncodeRLE(wide)
}

func DecodeRLEBytes(b64 string) ([]uint8, error) {
	wide, err := DecodeRLE(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, len(wide))
	for i, v := range wide {
		if v > 0xFF {
			return nil, fmt.Errorf("light value too large: %d", v)
		}
		out[i] = uint8(v)
	}
	return out, nil
}
