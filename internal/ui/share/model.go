// Package share is the share sheet modal: a list of share destinations for
// the active item.
package share

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/davecarlow/vertigo/internal/feed"
)

// Target is one share destination.
type Target struct {
	Name string
	Desc string
}

// DefaultTargets returns the built-in share destinations.
func DefaultTargets() []Target {
	return []Target{
		{Name: "Copy link", Desc: "Copy the item URL to the clipboard"},
		{Name: "Direct message", Desc: "Send to a friend"},
		{Name: "Repost", Desc: "Share to your profile"},
		{Name: "Report", Desc: "Flag this item"},
	}
}

// SelectedMsg reports the chosen destination to the parent.
type SelectedMsg struct {
	ItemID string
	Target string
}

// ClosedMsg tells the parent the sheet dismissed itself.
type ClosedMsg struct{}

type targetItem struct{ t Target }

func (i targetItem) Title() string       { return i.t.Name }
func (i targetItem) Description() string { return i.t.Desc }
func (i targetItem) FilterValue() string { return i.t.Name }

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

// Model is the share sheet.
type Model struct {
	list   list.Model
	item   feed.Item
	open   bool
	width  int
	height int
}

// New creates a share sheet.
func New() Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("212"))

	l := list.New([]list.Item{}, delegate, 40, 14)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)

	items := make([]list.Item, 0, len(DefaultTargets()))
	for _, t := range DefaultTargets() {
		items = append(items, targetItem{t})
	}
	l.SetItems(items)

	return Model{list: l}
}

// Open shows the sheet for an item.
func (m *Model) Open(item feed.Item) {
	m.open = true
	m.item = item
	m.list.Title = fmt.Sprintf("Share @%s's video", item.Author.Handle)
	m.list.ResetSelected()
}

// Close dismisses the sheet.
func (m *Model) Close() { m.open = false }

// IsOpen reports whether the sheet is showing.
func (m Model) IsOpen() bool { return m.open }

// SetSize adjusts the sheet to the terminal size.
func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w-8, h-8)
}

// Update handles sheet input.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.open {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.Close()
			return m, func() tea.Msg { return ClosedMsg{} }
		case "enter":
			if sel, ok := m.list.SelectedItem().(targetItem); ok {
				itemID := m.item.ID
				target := sel.t.Name
				m.Close()
				return m, func() tea.Msg {
					return SelectedMsg{ItemID: itemID, Target: target}
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the sheet.
func (m Model) View() string {
	if !m.open {
		return ""
	}
	return boxStyle.Render(m.list.View())
}
