// Package session owns the unlocked state of the app: the current screen,
// the in-memory PIN and decrypted seed cache, the one-second refresh cycle,
// and the background auto-lock. All mutation goes through Machine methods,
// so there is no hidden process-wide state.
package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/civistrom/civid/internal/common"
	"github.com/civistrom/civid/internal/enroll"
	"github.com/civistrom/civid/internal/logging"
	"github.com/civistrom/civid/internal/timex"
	"github.com/civistrom/civid/internal/totp"
	"github.com/civistrom/civid/internal/vault"
)

// Screen identifies what the UI should render.
type Screen string

const (
	ScreenLoading  Screen = "loading"
	ScreenSetup    Screen = "setup"
	ScreenPin      Screen = "pin"
	ScreenEmpty    Screen = "empty"
	ScreenAccounts Screen = "accounts"
	ScreenScanner  Screen = "scanner"
	ScreenConfirm  Screen = "confirm"
)

// SetupStep is the sub-state of the two-step PIN setup flow.
type SetupStep string

const (
	SetupStepCreate  SetupStep = "create"
	SetupStepConfirm SetupStep = "confirm"
)

// DefaultAutoLock is how long the app may stay in the background before the
// session is purged.
const DefaultAutoLock = 5 * time.Minute

// placeholderCode is shown for an account whose code could not be generated.
const placeholderCode = "------"

// Account is a displayed account: decrypted seed plus the cached code for
// the current window. Lives only inside the session.
type Account struct {
	ID      string
	Seed    string
	Code    string
	AddedAt time.Time
}

// clipboardWriteAll is a test seam for clipboard access.
var clipboardWriteAll = clipboard.WriteAll

var pinRe = regexp.MustCompile(`^\d{4}$`)

// User-visible inline messages.
const (
	msgPinFormat     = "PIN must be 4 digits"
	msgPinMismatch   = "PINs do not match"
	msgPinIncorrect  = "Incorrect PIN"
	msgDuplicate     = "This account is already registered"
	msgCameraDenied  = "Camera access denied"
	msgCameraFailure = "Camera unavailable"
	msgStorage       = "Storage unavailable"
)

// Machine sequences the screens. Methods are safe for concurrent use: timer
// and scanner callbacks arrive on their own goroutines.
type Machine struct {
	vault  *vault.Vault
	frames enroll.FrameSource
	clock  timex.Clock
	logger logging.Logger

	autoLockDur  time.Duration
	scanInterval time.Duration

	events chan struct{}

	mu            sync.Mutex
	screen        Screen
	message       string
	setupStep     SetupStep
	setupFirstPin []byte
	pin           []byte
	accounts      []Account
	remaining     int
	lastWindow    int64
	pending       *enroll.Candidate
	deleteTarget  string
	autoLockTimer timex.Timer
	scanner       *enroll.Scanner
}

// Option configures a Machine.
type Option func(*Machine)

func WithClock(c timex.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

func WithAutoLockDuration(d time.Duration) Option {
	return func(m *Machine) { m.autoLockDur = d }
}

func WithScanInterval(d time.Duration) Option {
	return func(m *Machine) { m.scanInterval = d }
}

// New creates a Machine over an opened vault. frames supplies camera frames
// for the scanner screen; nil means no camera is available.
func New(v *vault.Vault, frames enroll.FrameSource, opts ...Option) *Machine {
	m := &Machine{
		vault:       v,
		frames:      frames,
		clock:       timex.NewRealClock(),
		logger:      logging.NewNopLogger(),
		autoLockDur: DefaultAutoLock,
		events:      make(chan struct{}, 8),
		screen:      ScreenLoading,
		setupStep:   SetupStepCreate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events signals asynchronous state changes (auto-lock firing, scanner
// detection) so the UI can re-render. Best-effort: signals coalesce.
func (m *Machine) Events() <-chan struct{} {
	return m.events
}

func (m *Machine) emit() {
	select {
	case m.events <- struct{}{}:
	default:
	}
}

// Screen returns the current screen.
func (m *Machine) Screen() Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen
}

// Message returns the current inline user-visible message, or "".
func (m *Machine) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.message
}

// SetupStep returns the sub-step of the setup flow.
func (m *Machine) SetupStep() SetupStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setupStep
}

// Accounts returns a snapshot of the displayed accounts.
func (m *Machine) Accounts() []Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, len(m.accounts))
	copy(out, m.accounts)
	return out
}

// Remaining returns the seconds left in the current TOTP window.
func (m *Machine) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Pending returns the enrollment candidate awaiting confirmation, or nil.
func (m *Machine) Pending() *enroll.Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// DeleteTarget returns the account id awaiting deletion confirmation, or "".
func (m *Machine) DeleteTarget() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteTarget
}

// Unlocked reports whether a session PIN is held in memory.
func (m *Machine) Unlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pin != nil
}

// Init resolves the loading screen: setup on first run, pin otherwise.
// A storage failure keeps the loading screen with a visible message.
func (m *Machine) Init(ctx context.Context) error {
	isSetup, err := m.vault.IsSetup(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.message = msgStorage
		return err
	}
	if isSetup {
		m.screen = ScreenPin
	} else {
		m.screen = ScreenSetup
		m.setupStep = SetupStepCreate
	}
	return nil
}

// SubmitSetupPin advances the two-step setup flow. The first entry is cached
// in memory; the second must match it. A mismatch restarts the flow with a
// visible message and no attempt counter.
func (m *Machine) SubmitSetupPin(ctx context.Context, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen != ScreenSetup {
		return nil
	}
	if !pinRe.MatchString(pin) {
		m.message = msgPinFormat
		return nil
	}

	if m.setupStep == SetupStepCreate {
		m.setupFirstPin = []byte(pin)
		m.setupStep = SetupStepConfirm
		m.message = ""
		return nil
	}

	if pin != string(m.setupFirstPin) {
		common.WipeByteArray(m.setupFirstPin)
		m.setupFirstPin = nil
		m.setupStep = SetupStepCreate
		m.message = msgPinMismatch
		return nil
	}

	if err := m.vault.SetupPin(ctx, pin); err != nil {
		m.message = msgStorage
		return err
	}
	common.WipeByteArray(m.setupFirstPin)
	m.setupFirstPin = nil
	return m.unlockLocked(ctx, pin)
}

// SubmitUnlockPin verifies a PIN against the vault. Failure clears the input
// with an inline error; retries are unlimited.
func (m *Machine) SubmitUnlockPin(ctx context.Context, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen != ScreenPin {
		return nil
	}
	ok, err := m.vault.VerifyPin(ctx, pin)
	if err != nil {
		m.message = msgStorage
		return err
	}
	if !ok {
		m.message = msgPinIncorrect
		return nil
	}
	return m.unlockLocked(ctx, pin)
}

// unlockLocked loads accounts into the session and shows the list.
// Caller holds m.mu.
func (m *Machine) unlockLocked(ctx context.Context, pin string) error {
	loaded, err := m.vault.GetAccounts(ctx, pin)
	if err != nil {
		m.message = msgStorage
		return err
	}

	m.pin = []byte(pin)
	m.accounts = m.accounts[:0]
	for _, a := range loaded {
		m.accounts = append(m.accounts, Account{ID: a.ID, Seed: a.Seed, AddedAt: a.AddedAt})
	}
	m.message = ""
	m.refreshLocked(true)
	m.showAccountsOrEmptyLocked()
	return nil
}

func (m *Machine) showAccountsOrEmptyLocked() {
	if len(m.accounts) == 0 {
		m.screen = ScreenEmpty
	} else {
		m.screen = ScreenAccounts
	}
}

// Tick drives the one-second refresh while the account list is visible.
// The remaining-time indicator updates every tick; codes regenerate exactly
// once per account per 30-second window.
func (m *Machine) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pin == nil || m.screen != ScreenAccounts {
		return
	}
	m.refreshLocked(false)
}

// refreshLocked recomputes remaining seconds and, on a window boundary (or
// when forced), regenerates every cached code. Caller holds m.mu.
func (m *Machine) refreshLocked(force bool) {
	now := m.clock.Now().Unix()
	m.remaining = totp.RemainingSeconds(now)

	w := totp.Window(now)
	if !force && w == m.lastWindow {
		return
	}
	m.lastWindow = w

	for i := range m.accounts {
		code, err := totp.GenerateCode(m.accounts[i].Seed, now)
		if err != nil {
			m.logger.Error(context.Background(), "code generation failed", "id", m.accounts[i].ID)
			m.accounts[i].Code = placeholderCode
			continue
		}
		m.accounts[i].Code = code
	}
}

// Lock purges the session: PIN, decrypted seeds, pending state. The vault on
// disk is untouched.
func (m *Machine) Lock() {
	m.mu.Lock()
	scanner := m.lockLocked()
	m.mu.Unlock()
	if scanner != nil {
		scanner.Stop()
	}
}

// lockLocked does the in-memory purge and returns the scanner (if any) for
// the caller to stop outside the lock. Caller holds m.mu.
func (m *Machine) lockLocked() *enroll.Scanner {
	common.WipeByteArray(m.pin)
	m.pin = nil
	common.WipeByteArray(m.setupFirstPin)
	m.setupFirstPin = nil
	m.accounts = nil
	m.pending = nil
	m.deleteTarget = ""
	m.message = ""
	if m.autoLockTimer != nil {
		m.autoLockTimer.Stop()
		m.autoLockTimer = nil
	}
	scanner := m.scanner
	m.scanner = nil
	m.screen = ScreenPin
	return scanner
}

// EnterBackground arms the auto-lock countdown. Only one delayed task exists
// at a time.
func (m *Machine) EnterBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pin == nil {
		return
	}
	if m.autoLockTimer != nil {
		m.autoLockTimer.Stop()
	}
	m.autoLockTimer = m.clock.AfterFunc(m.autoLockDur, m.autoLock)
}

// EnterForeground cancels a pending auto-lock, keeping the session intact.
func (m *Machine) EnterForeground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.autoLockTimer != nil {
		m.autoLockTimer.Stop()
		m.autoLockTimer = nil
	}
}

func (m *Machine) autoLock() {
	m.mu.Lock()
	if m.pin == nil {
		m.mu.Unlock()
		return
	}
	scanner := m.lockLocked()
	m.mu.Unlock()
	if scanner != nil {
		scanner.Stop()
	}
	m.emit()
}

// OpenScanner moves to the scanner screen and starts the decoder. Without a
// camera the screen shows an actionable message instead of hanging.
func (m *Machine) OpenScanner(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pin == nil || (m.screen != ScreenAccounts && m.screen != ScreenEmpty) {
		return
	}
	m.screen = ScreenScanner
	m.message = ""
	m.deleteTarget = ""

	if m.frames == nil {
		m.message = msgCameraFailure
		return
	}

	var opts []enroll.Option
	if m.scanInterval > 0 {
		opts = append(opts, enroll.WithFrameInterval(m.scanInterval))
	}
	m.scanner = enroll.NewScanner(m.logger, opts...)
	m.scanner.Start(ctx, m.frames, m.onDetect, m.onScanError)
}

// onDetect runs on the scanner goroutine: move to confirmation with the
// candidate, unless the scanner screen was already left.
func (m *Machine) onDetect(c *enroll.Candidate) {
	m.mu.Lock()
	if m.screen == ScreenScanner {
		m.pending = c
		m.scanner = nil
		m.screen = ScreenConfirm
	}
	m.mu.Unlock()
	m.emit()
}

func (m *Machine) onScanError(err error) {
	m.mu.Lock()
	if m.screen == ScreenScanner {
		if errors.Is(err, common.ErrCameraPermission) {
			m.message = msgCameraDenied
		} else {
			m.message = msgCameraFailure
		}
		m.scanner = nil
	}
	m.mu.Unlock()
	m.emit()
}

// SubmitEnrollmentURI feeds a manually entered enrollment URI through the
// same trust checks as a scanned frame. Front-ends without a camera use this
// on the scanner screen. Returns false with a visible message when the URI
// is rejected.
func (m *Machine) SubmitEnrollmentURI(uri string) bool {
	m.mu.Lock()
	if m.screen != ScreenScanner {
		m.mu.Unlock()
		return false
	}
	cand := enroll.ParseURI(uri)
	if cand == nil {
		m.message = "Not a valid enrollment code"
		m.mu.Unlock()
		return false
	}
	scanner := m.scanner
	m.scanner = nil
	m.pending = cand
	m.message = ""
	m.screen = ScreenConfirm
	m.mu.Unlock()

	if scanner != nil {
		scanner.Stop()
	}
	return true
}

// CloseScanner stops the decoder and returns to the list.
func (m *Machine) CloseScanner() {
	m.mu.Lock()
	if m.screen != ScreenScanner {
		m.mu.Unlock()
		return
	}
	scanner := m.scanner
	m.scanner = nil
	m.message = ""
	m.showAccountsOrEmptyLocked()
	m.mu.Unlock()

	if scanner != nil {
		scanner.Stop()
	}
}

// ConfirmEnrollment persists the pending candidate. A duplicate id is
// rejected with a visible message and no store mutation. On success the
// account list reloads and codes regenerate immediately.
func (m *Machine) ConfirmEnrollment(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen != ScreenConfirm || m.pending == nil || m.pin == nil {
		return nil
	}
	cand := m.pending

	for _, a := range m.accounts {
		if a.ID == cand.ID {
			m.pending = nil
			m.message = msgDuplicate
			m.showAccountsOrEmptyLocked()
			return nil
		}
	}

	pin := string(m.pin)
	if err := m.vault.AddAccount(ctx, cand.ID, cand.Secret, pin); err != nil {
		m.pending = nil
		if errors.Is(err, common.ErrDuplicateAccount) {
			m.message = msgDuplicate
			m.showAccountsOrEmptyLocked()
			return nil
		}
		m.message = msgStorage
		m.showAccountsOrEmptyLocked()
		return err
	}

	loaded, err := m.vault.GetAccounts(ctx, pin)
	if err != nil {
		m.pending = nil
		m.message = msgStorage
		m.showAccountsOrEmptyLocked()
		return err
	}
	m.accounts = m.accounts[:0]
	for _, a := range loaded {
		m.accounts = append(m.accounts, Account{ID: a.ID, Seed: a.Seed, AddedAt: a.AddedAt})
	}

	m.pending = nil
	m.message = ""
	m.refreshLocked(true)
	m.screen = ScreenAccounts
	return nil
}

// CancelEnrollment discards the candidate without side effects.
func (m *Machine) CancelEnrollment() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screen != ScreenConfirm {
		return
	}
	m.pending = nil
	m.message = ""
	m.showAccountsOrEmptyLocked()
}

// RequestDelete opens the deletion confirmation for an account id (the
// hold gesture; a plain tap copies instead).
func (m *Machine) RequestDelete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screen != ScreenAccounts {
		return
	}
	for _, a := range m.accounts {
		if a.ID == id {
			m.deleteTarget = id
			return
		}
	}
}

// CancelDelete closes the deletion confirmation.
func (m *Machine) CancelDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteTarget = ""
}

// ConfirmDelete removes the targeted account from the store and the list.
// The in-memory list mutates only after the persisted delete succeeds.
// Deleting the last account moves to the empty screen, which stops refresh.
func (m *Machine) ConfirmDelete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteTarget == "" {
		return nil
	}
	id := m.deleteTarget

	if err := m.vault.RemoveAccount(ctx, id); err != nil {
		m.deleteTarget = ""
		m.message = msgStorage
		return err
	}

	kept := m.accounts[:0]
	for _, a := range m.accounts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	m.accounts = kept
	m.deleteTarget = ""

	if len(m.accounts) == 0 {
		m.screen = ScreenEmpty
	}
	return nil
}

// CopyCode copies the current code for an account to the clipboard.
func (m *Machine) CopyCode(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id && a.Code != "" && a.Code != placeholderCode {
			return clipboardWriteAll(a.Code)
		}
	}
	return common.ErrNotFound
}
