// Package vault is the encrypted local store of TOTP accounts. It owns the
// SQLite database, the accounts and settings collections, and the crypto
// composition rules: seeds are sealed under the PIN-derived key before they
// touch disk and are only ever decrypted into the caller's memory.
package vault

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/civistrom/civid/internal/common"
	"github.com/civistrom/civid/internal/cryptox"
	"github.com/civistrom/civid/internal/dbx"
	"github.com/civistrom/civid/internal/logging"
	"github.com/civistrom/civid/internal/vault/accounts"
	"github.com/civistrom/civid/internal/vault/migrations"
	"github.com/civistrom/civid/internal/vault/settings"
)

// DecryptedAccount is an account with its seed opened into memory. Instances
// must stay inside the session layer and never be persisted.
type DecryptedAccount struct {
	ID      string
	Seed    string
	AddedAt time.Time
}

// Vault combines the two persisted collections with the crypto service.
type Vault struct {
	db       *sql.DB
	accounts accounts.Repository
	settings settings.Repository
	crypto   *cryptox.Service
	logger   logging.Logger
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the vault database at dsn and applies migrations.
// Failures are reported as common.ErrStorageUnavailable.
func Open(ctx context.Context, dsn string, crypto *cryptox.Service, logger logging.Logger) (*Vault, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return &Vault{
		db:       db,
		accounts: accounts.NewSQLiteRepository(db),
		settings: settings.NewSQLiteRepository(db),
		crypto:   crypto,
		logger:   logger,
	}, nil
}

func (v *Vault) Close() error {
	return v.db.Close()
}

// IsSetup reports whether a PIN has been configured for this installation.
func (v *Vault) IsSetup(ctx context.Context) (bool, error) {
	hash, err := v.settings.Get(ctx, settings.KeyPinHash)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

// SetupPin performs first-time setup: generates the installation salt,
// stores the PIN hash and a fresh installation id. The salt is generated
// exactly once; calling SetupPin on an already-configured vault fails with
// common.ErrVaultAlreadySetup because a new salt would silently invalidate
// every stored account. Use ClearAll first for a full reset.
func (v *Vault) SetupPin(ctx context.Context, pin string) error {
	isSetup, err := v.IsSetup(ctx)
	if err != nil {
		return err
	}
	if isSetup {
		return common.ErrVaultAlreadySetup
	}

	salt := v.crypto.GenerateSalt()
	if err := v.settings.Set(ctx, settings.KeySalt, salt); err != nil {
		return err
	}
	if err := v.settings.Set(ctx, settings.KeyPinHash, v.crypto.HashPin(pin, salt)); err != nil {
		return err
	}
	return v.settings.Set(ctx, settings.KeyInstallationID, uuid.NewString())
}

// VerifyPin checks a candidate PIN against the stored hash. An unconfigured
// vault verifies nothing.
func (v *Vault) VerifyPin(ctx context.Context, pin string) (bool, error) {
	salt, err := v.settings.Get(ctx, settings.KeySalt)
	if err != nil {
		return false, err
	}
	storedHash, err := v.settings.Get(ctx, settings.KeyPinHash)
	if err != nil {
		return false, err
	}
	if salt == "" || storedHash == "" {
		return false, nil
	}
	return v.crypto.HashPin(pin, salt) == storedHash, nil
}

// AddAccount encrypts seed under (pin, installation salt) and persists the
// record. The id must not already be present.
func (v *Vault) AddAccount(ctx context.Context, id, seed, pin string) error {
	salt, err := v.settings.Get(ctx, settings.KeySalt)
	if err != nil {
		return err
	}
	if salt == "" {
		return common.ErrVaultNotSetup
	}

	enc, err := v.crypto.Encrypt(seed, pin, salt)
	if err != nil {
		return err
	}

	return v.accounts.Insert(ctx, &accounts.Account{
		ID:            id,
		EncryptedSeed: enc.Ciphertext,
		IV:            enc.IV,
		AddedAt:       time.Now().UTC(),
	})
}

// GetAccounts loads every stored account and decrypts each seed with the
// given PIN. Records that fail authentication are skipped and logged, never
// fatal: the returned slice is the successfully-decrypted subset.
func (v *Vault) GetAccounts(ctx context.Context, pin string) ([]DecryptedAccount, error) {
	salt, err := v.settings.Get(ctx, settings.KeySalt)
	if err != nil {
		return nil, err
	}
	if salt == "" {
		return nil, common.ErrVaultNotSetup
	}

	stored, err := v.accounts.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var result []DecryptedAccount
	for _, a := range stored {
		seed, err := v.crypto.Decrypt(&cryptox.Encrypted{IV: a.IV, Ciphertext: a.EncryptedSeed}, pin, salt)
		if err != nil {
			v.logger.Warn(ctx, "skipping undecryptable account", "id", a.ID)
			continue
		}
		result = append(result, DecryptedAccount{ID: a.ID, Seed: seed, AddedAt: a.AddedAt})
	}
	return result, nil
}

// RemoveAccount deletes an account by id. Removing an absent id is a no-op.
func (v *Vault) RemoveAccount(ctx context.Context, id string) error {
	return v.accounts.Delete(ctx, id)
}

// AccountCount returns the number of stored accounts without decrypting them.
func (v *Vault) AccountCount(ctx context.Context) (int, error) {
	return v.accounts.Count(ctx)
}

// InstallationID returns the id minted at setup, or "" before setup.
func (v *Vault) InstallationID(ctx context.Context) (string, error) {
	return v.settings.Get(ctx, settings.KeyInstallationID)
}

// ClearAll wipes both collections in a single transaction: accounts and
// settings reach empty together or not at all. This is the full-reset path
// and destroys every stored seed.
func (v *Vault) ClearAll(ctx context.Context) error {
	return dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := accounts.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return settings.NewSQLiteRepository(tx).Clear(ctx)
	})
}
