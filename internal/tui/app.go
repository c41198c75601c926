package tui

import (
	"context"
	"log/slog"
	"os"

	"github.com/civistrom/civid/internal/config"
	"github.com/civistrom/civid/internal/cryptox"
	"github.com/civistrom/civid/internal/logging"
	"github.com/civistrom/civid/internal/session"
	"github.com/civistrom/civid/internal/vault"
)

// App wires the vault, session machine and terminal UI together.
type App struct {
	cfg     *config.Config
	logger  logging.Logger
	vault   *vault.Vault
	machine *session.Machine
}

// NewApp opens the vault at cfg.VaultDSN and builds the session machine.
func NewApp(cfg *config.Config) (*App, error) {
	// UI owns stdout, so logs go to a file next to the vault
	logOut, err := os.OpenFile(cfg.VaultDSN+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	var logger logging.Logger = logging.NewSlogLogger(slog.New(slog.NewTextHandler(logOut, nil)))
	logger = logger.With("app", config.AppName)

	v, err := vault.Open(context.Background(), cfg.VaultDSN, cryptox.New(), logger)
	if err != nil {
		return nil, err
	}

	machine := session.New(v, nil,
		session.WithLogger(logger),
		session.WithAutoLockDuration(cfg.AutoLockDuration),
	)

	return &App{cfg: cfg, logger: logger, vault: v, machine: machine}, nil
}

// Run initializes the machine and blocks in the UI loop until the user
// quits. The vault closes on the way out.
func (a *App) Run(ctx context.Context) error {
	defer a.vault.Close()

	if err := a.machine.Init(ctx); err != nil {
		a.logger.Error(ctx, "vault init failed", "error", err)
	}

	return Run(ctx, a.machine)
}
