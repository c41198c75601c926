package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civistrom/civid/internal/cryptox"
	"github.com/civistrom/civid/internal/logging"
	"github.com/civistrom/civid/internal/session"
	"github.com/civistrom/civid/internal/vault"
)

func newTestModel(t *testing.T) model {
	t.Helper()
	ctx := context.Background()

	v, err := vault.Open(ctx, ":memory:", cryptox.NewWithIterations(1000), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	machine := session.New(v, nil)
	require.NoError(t, machine.Init(ctx))

	return model{
		machine:  machine,
		ctx:      ctx,
		pinInput: newPinInput(),
		uriInput: newURIInput(),
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func pressEnter(t *testing.T, m model) model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(model)
}

func typePin(t *testing.T, m model, pin string) model {
	t.Helper()
	for _, r := range pin {
		next, _ := m.Update(keyRunes(string(r)))
		m = next.(model)
	}
	return pressEnter(t, m)
}

func TestSetupFlowThroughKeys(t *testing.T) {
	m := newTestModel(t)
	require.Equal(t, session.ScreenSetup, m.machine.Screen())
	assert.Contains(t, m.View(), "Create PIN")

	m = typePin(t, m, "1234")
	assert.Contains(t, m.View(), "Repeat")

	m = typePin(t, m, "1234")
	assert.Equal(t, session.ScreenEmpty, m.machine.Screen())
	assert.Contains(t, m.View(), "No accounts yet")
}

func TestManualEnrollmentThroughKeys(t *testing.T) {
	m := newTestModel(t)
	m = typePin(t, m, "1234")
	m = typePin(t, m, "1234")

	next, _ := m.Update(keyRunes("a"))
	m = next.(model)
	require.Equal(t, session.ScreenScanner, m.machine.Screen())

	uri := "otpauth://totp/CIVISTROM:CIV-2024-0001-7?secret=JBSWY3DPEHPK3PXP&issuer=CIVISTROM"
	for _, r := range uri {
		next, _ := m.Update(keyRunes(string(r)))
		m = next.(model)
	}
	m = pressEnter(t, m)
	require.Equal(t, session.ScreenConfirm, m.machine.Screen())
	assert.Contains(t, m.View(), "CIV-2024-0001-7")

	next, _ = m.Update(keyRunes("y"))
	m = next.(model)
	assert.Equal(t, session.ScreenAccounts, m.machine.Screen())
	assert.Contains(t, m.View(), "CIV-2024-0001-7")
}

func TestTickMessageAdvancesClock(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(model)
	assert.NotNil(t, cmd)
}

func TestDeleteConfirmationKeys(t *testing.T) {
	m := newTestModel(t)
	m = typePin(t, m, "1234")
	m = typePin(t, m, "1234")

	require.NoError(t, addAccount(m, "CIV-2024-0001-7"))
	require.NoError(t, m.machine.SubmitUnlockPin(m.ctx, "1234"))

	next, _ := m.Update(keyRunes("d"))
	m = next.(model)
	assert.Contains(t, m.View(), "Delete CIV-2024-0001-7?")

	next, _ = m.Update(keyRunes("n"))
	m = next.(model)
	assert.Empty(t, m.machine.DeleteTarget())

	next, _ = m.Update(keyRunes("d"))
	m = next.(model)
	next, _ = m.Update(keyRunes("y"))
	m = next.(model)
	assert.Equal(t, session.ScreenEmpty, m.machine.Screen())
}

// addAccount enrolls directly through the machine, then locks so the caller
// can unlock into a populated list.
func addAccount(m model, id string) error {
	uri := "otpauth://totp/CIVISTROM:" + id + "?secret=JBSWY3DPEHPK3PXP&issuer=CIVISTROM"
	m.machine.OpenScanner(m.ctx)
	if !m.machine.SubmitEnrollmentURI(uri) {
		return context.Canceled
	}
	if err := m.machine.ConfirmEnrollment(m.ctx); err != nil {
		return err
	}
	m.machine.Lock()
	return nil
}
