// Package cryptox implements the PIN-derived key management used by the
// vault: PBKDF2 key stretching, AES-256-GCM authenticated encryption of TOTP
// seeds, and a fast salted hash for PIN verification.
//
// The PIN verification hash is deliberately independent of the slow-derived
// encryption key, so verification timing reveals nothing about key material.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"

	"github.com/civistrom/civid/internal/common"
)

const (
	// DefaultIterations is the PBKDF2 cost. A 4-digit PIN has ~13 bits of
	// entropy; the iteration count is the only brute-force throttle.
	DefaultIterations = 600000

	keyLength   = 32 // AES-256
	saltLength  = 16
	nonceLength = 12 // 96-bit GCM nonce
)

// Encrypted is one sealed value: a per-call random nonce and the GCM
// ciphertext (which includes the auth tag), both base64-encoded for storage.
type Encrypted struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

// Service derives keys and seals/opens seeds. The iteration count is
// configurable so tests are not bound to the production cost.
type Service struct {
	iterations int
}

func New() *Service {
	return &Service{iterations: DefaultIterations}
}

func NewWithIterations(n int) *Service {
	return &Service{iterations: n}
}

// GenerateSalt returns a fresh random 128-bit salt, base64-encoded.
// A salt is generated exactly once per installation and never rotated.
func (s *Service) GenerateSalt() string {
	return base64.StdEncoding.EncodeToString(common.GenerateRandByteArray(saltLength))
}

// DeriveKey stretches the PIN into a 256-bit AES key via PBKDF2-SHA256.
// Deterministic for equal (pin, salt). The caller should wipe the returned
// key when done.
func (s *Service) DeriveKey(pin, salt string) ([]byte, error) {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key([]byte(pin), saltBytes, s.iterations, keyLength, sha256.New), nil
}

// Encrypt seals plaintext under the PIN-derived key with AES-256-GCM and a
// fresh random nonce. Nonce reuse is a protocol violation, so there is no way
// to supply one.
func (s *Service) Encrypt(plaintext, pin, salt string) (*Encrypted, error) {
	key, err := s.DeriveKey(pin, salt)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(nonceLength)
	ciphertext := aesgcm.Seal(nil, nonce, []byte(plaintext), nil)

	return &Encrypted{
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens a sealed value with the PIN-derived key. Any authentication
// or decoding failure returns common.ErrWrongPinOrCorrupt: a wrong PIN and
// tampered data are indistinguishable, which avoids oracle leaks.
func (s *Service) Decrypt(data *Encrypted, pin, salt string) (string, error) {
	key, err := s.DeriveKey(pin, salt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	nonce, err := base64.StdEncoding.DecodeString(data.IV)
	if err != nil {
		return "", common.ErrWrongPinOrCorrupt
	}
	ciphertext, err := base64.StdEncoding.DecodeString(data.Ciphertext)
	if err != nil {
		return "", common.ErrWrongPinOrCorrupt
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return "", common.ErrWrongPinOrCorrupt
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", common.ErrWrongPinOrCorrupt
	}
	return string(plaintext), nil
}

// HashPin returns hex(SHA-256(pin ":" salt)). Used only for PIN verification,
// never as key material.
func (s *Service) HashPin(pin, salt string) string {
	sum := sha256.Sum256([]byte(pin + ":" + salt))
	return hex.EncodeToString(sum[:])
}
