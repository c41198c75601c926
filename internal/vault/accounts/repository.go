// Package accounts persists encrypted TOTP accounts, keyed by CIV ID.
// Seeds in this collection are always ciphertext; decryption happens in the
// vault service layer.
package accounts

import (
	"context"
	"time"
)

// Account is one persisted record. EncryptedSeed and IV are base64 strings
// produced by cryptox.
type Account struct {
	ID            string
	EncryptedSeed string
	IV            string
	AddedAt       time.Time
}

type Repository interface {
	// Insert adds a new account. A record with the same ID fails with
	// common.ErrDuplicateAccount without mutating the store.
	Insert(ctx context.Context, a *Account) error

	// GetAll lists every stored account, oldest first.
	GetAll(ctx context.Context) ([]Account, error)

	// Delete removes an account by ID. Deleting an absent ID is a no-op.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int, error)

	// Clear removes every account.
	Clear(ctx context.Context) error
}
