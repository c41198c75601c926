// Package settings persists per-installation vault settings (salt, PIN hash,
// installation id) as a small key-value collection.
package settings

import "context"

// Well-known setting keys.
const (
	KeySalt           = "salt"
	KeyPinHash        = "pinHash"
	KeyInstallationID = "installationId"
)

type Repository interface {
	// Get returns the value for key, or ("", nil) if the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or overwrites the value for key.
	Set(ctx context.Context, key, value string) error

	// Clear removes every setting.
	Clear(ctx context.Context) error
}
