// Package common defines shared constants and sentinel errors used across
// CIVISTROM ID components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAccount = errors.New("account already exists")

	// Crypto errors. A failed authenticated decryption cannot distinguish a
	// wrong PIN from tampered ciphertext, so both map to one sentinel.
	ErrWrongPinOrCorrupt = errors.New("wrong pin or corrupt data")

	// Decoder errors.
	ErrInvalidBase32        = errors.New("invalid base32 character")
	ErrInvalidEnrollmentURI = errors.New("invalid enrollment uri")

	// Vault lifecycle errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrVaultAlreadySetup  = errors.New("vault already set up")
	ErrVaultNotSetup      = errors.New("vault not set up")

	// Scanner errors.
	ErrCameraPermission  = errors.New("camera permission denied")
	ErrCameraUnavailable = errors.New("camera unavailable")
)
