// Package options is the playback options modal: per-item speed override
// and the global mute toggle.
package options

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Rates are the selectable playback speeds.
var Rates = []float64{0.5, 1.0, 1.5, 2.0}

// RateChangedMsg reports a speed choice for an item.
type RateChangedMsg struct {
	ItemID string
	Rate   float64
}

// MuteToggledMsg reports a mute flip.
type MuteToggledMsg struct{}

// ClosedMsg tells the parent the modal dismissed itself.
type ClosedMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	rowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	selStyle   = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// Model is the options modal.
type Model struct {
	itemID string
	cursor int
	rate   float64
	muted  bool
	open   bool
}

// New creates an options modal.
func New() Model {
	return Model{rate: 1.0}
}

// Open shows the modal for an item with its current rate and mute state.
func (m *Model) Open(itemID string, rate float64, muted bool) {
	m.open = true
	m.itemID = itemID
	m.rate = rate
	m.muted = muted
	m.cursor = 0
	for i, r := range Rates {
		if r == rate {
			m.cursor = i
			break
		}
	}
}

// Close dismisses the modal.
func (m *Model) Close() { m.open = false }

// IsOpen reports whether the modal is showing.
func (m Model) IsOpen() bool { return m.open }

// Update handles modal input.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.open {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc":
		m.Close()
		return m, func() tea.Msg { return ClosedMsg{} }
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(Rates)-1 {
			m.cursor++
		}
	case "enter":
		m.rate = Rates[m.cursor]
		itemID := m.itemID
		rate := m.rate
		return m, func() tea.Msg {
			return RateChangedMsg{ItemID: itemID, Rate: rate}
		}
	case "m":
		m.muted = !m.muted
		return m, func() tea.Msg { return MuteToggledMsg{} }
	}
	return m, nil
}

// View renders the modal.
func (m Model) View() string {
	if !m.open {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Playback speed"))
	b.WriteString("\n\n")

	for i, r := range Rates {
		label := fmt.Sprintf("%.2gx", r)
		if r == m.rate {
			label += " ✓"
		}
		if i == m.cursor {
			b.WriteString(selStyle.Render("› " + label))
		} else {
			b.WriteString(rowStyle.Render("  " + label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	mute := "off"
	if m.muted {
		mute = "on"
	}
	b.WriteString(rowStyle.Render("Mute: " + mute))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("enter select  m mute  esc close"))

	return boxStyle.Render(b.String())
}
