package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for _, code := range []string{
		ErrProtoBadRequest,
		ErrNotLoaded,
		ErrStorage,
		ErrUnsupportedVersion,
		ErrInvalidTransfer,
		ErrBadRequest,
		ErrInvalidTarget,
		ErrInternal,
	} {
		if !IsKnownCode(code) {
			t.Fatalf("published code %q not known", code)
		}
	}
	if !IsKnownCode("") {
		t.Fatalf("empty code (success) should be accepted")
	}
	if IsKnownCode("E_MYSTERY") {
		t.Fatalf("unknown code accepted")
	}
}
