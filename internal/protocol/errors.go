package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World state.
	ErrNotLoaded          = "E_NOT_LOADED"
	ErrStorage            = "E_STORAGE"
	ErrUnsupportedVersion = "E_UNSUPPORTED_VERSION"
	ErrInvalidTransfer    = "E_INVALID_TRANSFER"

	// Request layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrNotLoaded:          {},
	ErrStorage:            {},
	ErrUnsupportedVersion: {},
	ErrInvalidTransfer:    {},
	ErrBadRequest:         {},
	ErrInvalidTarget:      {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
