// Package comments is the comments modal: a scrollable thread for one item
// plus an input for posting. Playback pauses while it is open; the feed
// screen owns that, this model only reports open/closed.
package comments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/format"
)

// Service loads and posts comments.
type Service interface {
	ListComments(ctx context.Context, itemID, cursor string) (api.CommentPage, error)
	PostComment(ctx context.Context, itemID, text string) error
}

// LoadedMsg delivers one page of comments.
type LoadedMsg struct {
	ItemID string
	Page   api.CommentPage
	Err    error
}

// PostedMsg reports the outcome of posting a comment.
type PostedMsg struct {
	ItemID string
	Text   string
	Err    error
}

// ClosedMsg tells the parent the modal dismissed itself.
type ClosedMsg struct{}

const maxCommentRunes = 280

var (
	authorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// Model is the comments modal.
type Model struct {
	svc    Service
	itemID string
	now    func() time.Time

	comments []api.Comment
	cursor   string
	loading  bool
	posting  bool
	loadErr  error

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	width    int
	height   int
	open     bool
}

// New creates a comments modal backed by svc.
func New(svc Service, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	ti := textinput.New()
	ti.Placeholder = "Add a comment..."
	ti.Prompt = "> "
	ti.CharLimit = maxCommentRunes

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(60, 12)

	return Model{
		svc:      svc,
		now:      now,
		viewport: vp,
		input:    ti,
		spinner:  sp,
	}
}

// Open resets the modal for an item and starts the first page load.
func (m *Model) Open(itemID string) tea.Cmd {
	m.open = true
	m.itemID = itemID
	m.comments = nil
	m.cursor = ""
	m.loadErr = nil
	m.loading = true
	m.posting = false
	m.input.SetValue("")
	m.input.Focus()
	m.viewport.GotoTop()
	return tea.Batch(m.loadCmd(itemID, ""), textinput.Blink, m.spinner.Tick)
}

// Close dismisses the modal.
func (m *Model) Close() {
	m.open = false
	m.input.Blur()
}

// IsOpen reports whether the modal is showing.
func (m Model) IsOpen() bool { return m.open }

// ItemID returns the item the modal is showing comments for.
func (m Model) ItemID() string { return m.itemID }

// SetSize adjusts the modal to the terminal size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 8
	m.viewport.Height = height - 10
	if m.viewport.Height < 4 {
		m.viewport.Height = 4
	}
	m.input.Width = width - 14
}

// Update handles modal messages. Messages for other items are dropped: the
// modal may have been reopened for a different item while a load was in
// flight.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.open {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.Close()
			return m, func() tea.Msg { return ClosedMsg{} }
		case "enter":
			return m, m.submit()
		case "pgdown", "ctrl+d":
			m.viewport.HalfViewDown()
			if m.viewport.AtBottom() && m.cursor != "" && !m.loading {
				m.loading = true
				return m, m.loadCmd(m.itemID, m.cursor)
			}
			return m, nil
		case "pgup", "ctrl+u":
			m.viewport.HalfViewUp()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case LoadedMsg:
		if msg.ItemID != m.itemID {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.loadErr = msg.Err
			return m, nil
		}
		m.loadErr = nil
		m.comments = append(m.comments, msg.Page.Comments...)
		m.cursor = msg.Page.NextCursor
		m.refreshViewport()
		return m, nil

	case PostedMsg:
		if msg.ItemID != m.itemID {
			return m, nil
		}
		m.posting = false
		if msg.Err != nil {
			m.loadErr = fmt.Errorf("post failed: %w", msg.Err)
			return m, nil
		}
		// Show the new comment immediately rather than refetching.
		m.comments = append(m.comments, api.Comment{
			Author:    "you",
			Text:      msg.Text,
			CreatedAt: m.now(),
		})
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// submit posts the input text. Empty and whitespace-only input is ignored.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.posting {
		return nil
	}
	m.posting = true
	m.input.SetValue("")

	svc := m.svc
	itemID := m.itemID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.PostComment(ctx, itemID, text)
		return PostedMsg{ItemID: itemID, Text: text, Err: err}
	}
}

func (m *Model) loadCmd(itemID, cursor string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		page, err := svc.ListComments(ctx, itemID, cursor)
		return LoadedMsg{ItemID: itemID, Page: page, Err: err}
	}
}

func (m *Model) refreshViewport() {
	var b strings.Builder
	for _, c := range m.comments {
		b.WriteString(authorStyle.Render("@" + c.Author))
		b.WriteString(metaStyle.Render("  " + format.TimeAgo(c.CreatedAt, m.now())))
		if c.Likes > 0 {
			b.WriteString(metaStyle.Render("  ♥ " + format.PrettyCount(c.Likes)))
		}
		b.WriteString("\n")
		b.WriteString(textStyle.Width(m.viewport.Width).Render(c.Text))
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
}

// View renders the modal.
func (m Model) View() string {
	if !m.open {
		return ""
	}

	var b strings.Builder
	title := fmt.Sprintf("Comments (%d)", len(m.comments))
	b.WriteString(authorStyle.Render(title))
	b.WriteString("\n\n")

	switch {
	case m.loading && len(m.comments) == 0:
		b.WriteString(m.spinner.View())
		b.WriteString(" loading…")
	case m.loadErr != nil && len(m.comments) == 0:
		b.WriteString(errStyle.Render("could not load comments"))
	case len(m.comments) == 0:
		b.WriteString(metaStyle.Render("No comments yet. Say something nice."))
	default:
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n\n")

	if m.posting {
		b.WriteString(m.spinner.View())
		b.WriteString(" posting…\n")
	} else if m.loadErr != nil && len(m.comments) > 0 {
		b.WriteString(errStyle.Render(m.loadErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(metaStyle.Render("enter post  pgup/pgdn scroll  esc close"))

	width := m.width - 4
	if width < 30 {
		width = 30
	}
	return boxStyle.Width(width).Render(b.String())
}
