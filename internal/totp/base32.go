package totp

import (
	"fmt"
	"strings"

	"github.com/civistrom/civid/internal/common"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Base32Decode decodes an RFC 4648 Base32 string. Input is upper-cased and
// trailing '=' padding is stripped before decoding. Characters outside the
// alphabet fail with common.ErrInvalidBase32. Partial trailing bit groups of
// fewer than 8 bits are discarded, not zero-extended.
//
// encoding/base32 is not used here: it rejects unpadded input lengths and
// handles trailing bits differently than TOTP secrets in the wild require.
func Base32Decode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	s = strings.TrimRight(strings.ToUpper(s), "=")

	var (
		buffer uint16
		bits   uint
		out    []byte
	)
	for _, r := range s {
		idx := strings.IndexRune(base32Alphabet, r)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", common.ErrInvalidBase32, r)
		}
		buffer = buffer<<5 | uint16(idx)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>bits))
		}
	}
	return out, nil
}
