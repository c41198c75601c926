// Package totp implements RFC 6238 time-based one-time passwords over
// RFC 4648 Base32 secrets. Codes are 6 digits on a 30-second period,
// matching every mainstream authenticator app.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

const (
	// Period is the TOTP time step in seconds.
	Period = 30
	// Digits is the code length.
	Digits = 6
)

// Window maps a Unix timestamp to its TOTP counter value. Two timestamps in
// the same window yield identical codes.
func Window(timestamp int64) int64 {
	return timestamp / Period
}

// GenerateCode computes the 6-digit TOTP code for the given Base32 secret at
// the given Unix timestamp, per RFC 6238 with the RFC 4226 dynamic
// truncation. Deterministic.
func GenerateCode(secretBase32 string, timestamp int64) (string, error) {
	key, err := Base32Decode(secretBase32)
	if err != nil {
		return "", err
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(Window(timestamp)))

	mac := hmac.New(sha1.New, key)
	mac.Write(counter[:])
	sum := mac.Sum(nil)

	// Dynamic truncation: low 4 bits of the last byte select a 4-byte
	// big-endian word, masked to 31 bits.
	offset := sum[len(sum)-1] & 0x0F
	value := uint32(sum[offset]&0x7F)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	return fmt.Sprintf("%0*d", Digits, value%1000000), nil
}

// RemainingSeconds returns how many seconds of the current window are left
// at the given Unix timestamp. Ranges from 1 to Period.
func RemainingSeconds(now int64) int {
	return Period - int(now%Period)
}
