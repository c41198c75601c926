// Package tui is the terminal front-end. It renders the session screens and
// translates key presses into machine calls; all flow decisions live in the
// session package.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/civistrom/civid/internal/session"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	codeStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type tickMsg time.Time

type machineEventMsg struct{}

type model struct {
	machine  *session.Machine
	ctx      context.Context
	pinInput textinput.Model
	uriInput textinput.Model
	cursor   int
	notice   string
}

func newPinInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "PIN"
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 4
	ti.Width = 8
	ti.Focus()
	return ti
}

func newURIInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "otpauth://totp/..."
	ti.Width = 60
	ti.Focus()
	return ti
}

// Run starts the interactive terminal UI over an initialized machine and
// blocks until the user quits.
func Run(ctx context.Context, machine *session.Machine) error {
	m := model{
		machine:  machine,
		ctx:      ctx,
		pinInput: newPinInput(),
		uriInput: newURIInput(),
	}

	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitEvent())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		<-m.machine.Events()
		return machineEventMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.machine.Tick()
		return m, tickCmd()
	case machineEventMsg:
		// async transition (auto-lock, scanner); re-render and keep listening
		m.clampCursor()
		return m, m.waitEvent()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.machine.Lock()
			return m, tea.Quit
		}
	}

	switch m.machine.Screen() {
	case session.ScreenSetup:
		return m.updatePinEntry(msg, func(pin string) {
			_ = m.machine.SubmitSetupPin(m.ctx, pin)
		})
	case session.ScreenPin:
		return m.updatePinEntry(msg, func(pin string) {
			_ = m.machine.SubmitUnlockPin(m.ctx, pin)
		})
	case session.ScreenEmpty:
		return m.updateEmpty(msg)
	case session.ScreenAccounts:
		return m.updateAccounts(msg)
	case session.ScreenScanner:
		return m.updateScanner(msg)
	case session.ScreenConfirm:
		return m.updateConfirm(msg)
	default:
		return m, nil
	}
}

func (m model) updatePinEntry(msg tea.Msg, submit func(string)) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			submit(m.pinInput.Value())
			m.pinInput.SetValue("")
			return m, nil
		case "q":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.pinInput, cmd = m.pinInput.Update(msg)
	return m, cmd
}

func (m model) updateEmpty(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "a":
			m.uriInput.SetValue("")
			m.machine.OpenScanner(m.ctx)
		case "L":
			m.machine.Lock()
			m.pinInput.SetValue("")
		case "q":
			m.machine.Lock()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) updateAccounts(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	// deletion confirmation takes over the keys while open
	if m.machine.DeleteTarget() != "" {
		switch key.String() {
		case "y":
			_ = m.machine.ConfirmDelete(m.ctx)
			m.clampCursor()
		case "n", "esc":
			m.machine.CancelDelete()
		}
		return m, nil
	}

	accounts := m.machine.Accounts()
	switch key.String() {
	case "j", "down":
		if m.cursor < len(accounts)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "c", "enter":
		if m.cursor < len(accounts) {
			if err := m.machine.CopyCode(accounts[m.cursor].ID); err == nil {
				m.notice = "Code copied"
			} else {
				m.notice = "Copy failed"
			}
		}
	case "d":
		if m.cursor < len(accounts) {
			m.machine.RequestDelete(accounts[m.cursor].ID)
		}
	case "a":
		m.uriInput.SetValue("")
		m.machine.OpenScanner(m.ctx)
	case "L":
		m.machine.Lock()
		m.pinInput.SetValue("")
	case "q":
		m.machine.Lock()
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updateScanner(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			if m.machine.SubmitEnrollmentURI(m.uriInput.Value()) {
				m.uriInput.SetValue("")
			}
			return m, nil
		case "esc":
			m.machine.CloseScanner()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.uriInput, cmd = m.uriInput.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "enter":
			_ = m.machine.ConfirmEnrollment(m.ctx)
			m.clampCursor()
		case "n", "esc":
			m.machine.CancelEnrollment()
		}
	}
	return m, nil
}

func (m *model) clampCursor() {
	if n := len(m.machine.Accounts()); m.cursor >= n && m.cursor > 0 {
		m.cursor = n - 1
	}
}

func (m model) View() string {
	switch m.machine.Screen() {
	case session.ScreenLoading:
		return m.viewLoading()
	case session.ScreenSetup:
		return m.viewSetup()
	case session.ScreenPin:
		return m.viewPin()
	case session.ScreenEmpty:
		return m.viewEmpty()
	case session.ScreenAccounts:
		return m.viewAccounts()
	case session.ScreenScanner:
		return m.viewScanner()
	case session.ScreenConfirm:
		return m.viewConfirm()
	default:
		return "Unknown state"
	}
}

func (m model) message() string {
	if msg := m.machine.Message(); msg != "" {
		return "\n" + msgStyle.Render(msg) + "\n"
	}
	return ""
}

func (m model) viewLoading() string {
	s := titleStyle.Render("CIVISTROM ID") + "\n\nOpening vault..."
	return s + m.message()
}

func (m model) viewSetup() string {
	s := titleStyle.Render("Create PIN") + "\n\n"
	if m.machine.SetupStep() == session.SetupStepConfirm {
		s += "Repeat the PIN to confirm:\n\n"
	} else {
		s += "Choose a 4-digit PIN for this device:\n\n"
	}
	s += m.pinInput.View() + "\n"
	s += m.message()
	s += hintStyle.Render("\nenter=submit  q=quit")
	return s
}

func (m model) viewPin() string {
	s := titleStyle.Render("Unlock") + "\n\n"
	s += m.pinInput.View() + "\n"
	s += m.message()
	s += hintStyle.Render("\nenter=unlock  q=quit")
	return s
}

func (m model) viewEmpty() string {
	s := titleStyle.Render("CIVISTROM ID") + "\n\nNo accounts yet.\n"
	s += m.message()
	s += hintStyle.Render("\na=add account  L=lock  q=quit")
	return s
}

func (m model) viewAccounts() string {
	s := titleStyle.Render("Accounts") + "\n\n"
	accounts := m.machine.Accounts()
	for i, a := range accounts {
		line := fmt.Sprintf("%-18s  %s", a.ID, codeStyle.Render(a.Code))
		if i == m.cursor {
			line = selectedStyle.Render(fmt.Sprintf("%-18s  %s", a.ID, a.Code))
		}
		s += line + "\n"
	}
	s += fmt.Sprintf("\nNext code in %ds\n", m.machine.Remaining())

	if target := m.machine.DeleteTarget(); target != "" {
		s += "\n" + msgStyle.Render(fmt.Sprintf("Delete %s? y/n", target)) + "\n"
		return s
	}

	if m.notice != "" {
		s += "\n" + m.notice + "\n"
	}
	s += m.message()
	s += hintStyle.Render("\nj/k=move  c=copy  a=add  d=delete  L=lock  q=quit")
	return s
}

func (m model) viewScanner() string {
	s := titleStyle.Render("Add account") + "\n\n"
	s += "Scan the enrollment QR code, or paste its contents:\n\n"
	s += m.uriInput.View() + "\n"
	s += m.message()
	s += hintStyle.Render("\nenter=submit  esc=back")
	return s
}

func (m model) viewConfirm() string {
	s := titleStyle.Render("Confirm enrollment") + "\n\n"
	if p := m.machine.Pending(); p != nil {
		s += fmt.Sprintf("ID:     %s\nIssuer: %s\n", p.ID, p.Issuer)
	}
	s += m.message()
	s += hintStyle.Render("\ny=add  n=cancel")
	return s
}
