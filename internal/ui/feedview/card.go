package feedview

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/davecarlow/vertigo/internal/format"
	"github.com/davecarlow/vertigo/internal/player"
)

var (
	colorAccent    = lipgloss.Color("212") // Pink
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorDanger    = lipgloss.Color("196") // Red
	colorGold      = lipgloss.Color("220") // Sponsored badge
)

var (
	handleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	captionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	tagStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	metaStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("232")).
			Background(colorGold).
			Padding(0, 1).
			MarginRight(1)

	aiBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(colorMuted).
			Padding(0, 1).
			MarginRight(1)

	gateStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	gateHintStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)

	countActiveStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	cardBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	activeCardBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent).
				Padding(0, 1)

	sentinelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Align(lipgloss.Center)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("62")).
			Padding(0, 1).
			MarginRight(1)

	tabStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Padding(0, 1).
			MarginRight(1)
)

const maxCaptionRunes = 80

// View renders the feed screen: tab bar, the active card, and a peek of
// its neighbors.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	p := m.pagers[m.kind]
	if p == nil || p.Len() == 0 {
		b.WriteString(m.renderEmpty(p))
		return b.String()
	}

	cardWidth := m.width - 4
	if cardWidth < 24 {
		cardWidth = 24
	}

	if gap := m.scrollGap(); gap > 0 {
		b.WriteString(strings.Repeat("\n", gap))
	}

	for i := m.active - 1; i <= m.active+1; i++ {
		if i < 0 {
			continue
		}
		if i >= p.Len() {
			break
		}
		item := p.At(i)
		active := i == m.active
		if active {
			b.WriteString(m.renderCard(item, m.sessions[item.ID], cardWidth))
		} else {
			b.WriteString(m.renderPeek(item, cardWidth))
		}
		b.WriteString("\n")
	}

	if p.Err() != nil {
		b.WriteString(metaStyle.Render("load failed, press r to retry"))
		b.WriteString("\n")
	}
	return b.String()
}

// scrollGap converts the spring's remaining distance from the active row
// into blank lines above the window, so the card slides into place over a
// few ticks instead of snapping.
func (m Model) scrollGap() int {
	gap := int(math.Round(math.Abs(m.scrollPos-float64(m.active)) * 3))
	if gap > 4 {
		gap = 4
	}
	return gap
}

func (m Model) renderTabs() string {
	var b strings.Builder
	for _, k := range m.kinds() {
		if k == feed.KindForYou && !m.forYouEnabled {
			continue
		}
		if k == m.kind {
			b.WriteString(tabActiveStyle.Render(k.Label()))
		} else {
			b.WriteString(tabStyle.Render(k.Label()))
		}
	}
	return b.String()
}

func (m Model) renderEmpty(p *feed.Pager) string {
	if p != nil && p.Fetching() {
		return fmt.Sprintf("%s loading %s…", m.spinner.View(), m.kind.Label())
	}
	if p != nil && p.Err() != nil {
		return metaStyle.Render("load failed, press r to retry")
	}
	if m.atEndSentinel() {
		return sentinelStyle.Render("You're all caught up")
	}
	return metaStyle.Render("nothing here yet")
}

// atEndSentinel reports whether the end-of-feed marker shows: only the
// personalized feed gets one, and only when it came back empty with no
// further pages.
func (m Model) atEndSentinel() bool {
	if m.kind != feed.KindForYou {
		return false
	}
	p := m.pagers[m.kind]
	return p != nil && p.Started() && p.Exhausted() && p.Len() == 0
}

// renderCard draws the active item in full: header badges, playback area,
// caption, counts, and the controls overlay when visible.
func (m Model) renderCard(item feed.Item, s *player.Session, width int) string {
	var b strings.Builder

	if item.Sponsored {
		b.WriteString(badgeStyle.Render("Sponsored"))
	}
	if item.AIGenerated {
		b.WriteString(aiBadgeStyle.Render("AI"))
	}
	if item.Sponsored || item.AIGenerated {
		b.WriteString("\n")
	}

	b.WriteString(handleStyle.Render("@" + item.Author.Handle))
	b.WriteString(metaStyle.Render("  " + format.TimeAgo(item.CreatedAt, m.now())))
	b.WriteString("\n")

	b.WriteString(m.renderPlayback(item, s, width-4))
	b.WriteString("\n")

	if item.Media.AltText != "" {
		b.WriteString(metaStyle.Italic(true).Render(item.Media.AltText))
		b.WriteString("\n")
	}

	if item.Caption != nil && item.Caption.Text != "" {
		b.WriteString(renderCaption(*item.Caption, width-4))
		b.WriteString("\n")
	}

	b.WriteString(m.renderCounts(item, s))

	if s != nil && s.ControlsVisible() {
		b.WriteString("\n")
		b.WriteString(controlsStyle.Render(m.renderControls(s)))
	}

	return activeCardBorder.Width(width).Render(b.String())
}

// renderPeek draws a neighbor item as a one-line strip. Truncation here is
// by terminal cells, not code points, so wide glyphs keep the row aligned.
func (m Model) renderPeek(item feed.Item, width int) string {
	caption := ""
	if item.Caption != nil {
		caption = item.Caption.Text
	}
	line := fmt.Sprintf("@%s  %s", item.Author.Handle, caption)
	line = runewidth.Truncate(line, width-4, "…")
	return cardBorder.Width(width).Render(metaStyle.Render(line))
}

// renderPlayback draws the video area: the sensitive gate, the pause glyph,
// or the progress bar with timestamps.
func (m Model) renderPlayback(item feed.Item, s *player.Session, width int) string {
	if s == nil {
		return metaStyle.Render("…")
	}

	switch s.State() {
	case player.StateSensitiveGated:
		return gateStyle.Render("⚠ Sensitive content") + "\n" +
			gateHintStyle.Render("press enter to watch anyway")
	case player.StatePausedManual, player.StatePausedAuto:
		return m.renderProgress(item, s, width) + "  " + metaStyle.Render("⏸")
	default:
		return m.renderProgress(item, s, width)
	}
}

func (m Model) renderProgress(item feed.Item, s *player.Session, width int) string {
	bar := m.progress
	bar.Width = width - 14
	if bar.Width < 10 {
		bar.Width = 10
	}

	pos := format.SecondsToTimeString(int(s.Position()))
	dur := format.SecondsToTimeString(item.Media.DurationSeconds)
	line := fmt.Sprintf("%s %s/%s", bar.ViewAs(s.Progress()), pos, dur)
	if s.Scrubbing() {
		line += " " + tagStyle.Render("◂▸")
	}
	return line
}

// renderCaption highlights mentions and hashtags inside the caption text.
func renderCaption(c feed.Caption, width int) string {
	text := format.Truncate(c.Text, maxCaptionRunes)
	words := strings.Fields(text)
	for i, w := range words {
		if strings.HasPrefix(w, "@") || strings.HasPrefix(w, "#") {
			words[i] = tagStyle.Render(w)
		} else {
			words[i] = captionStyle.Render(w)
		}
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(words, " "))
}

func (m Model) renderCounts(item feed.Item, s *player.Session) string {
	likes := item.Likes
	bookmarks := item.Bookmarks
	liked := item.Liked
	bookmarked := item.Bookmarked
	if s != nil {
		likes = s.DisplayLikes()
		bookmarks = s.DisplayBookmarks()
		liked = s.Liked()
		bookmarked = s.Bookmarked()
	}

	likeStyle := countStyle
	if liked {
		likeStyle = countActiveStyle
	}
	bmStyle := countStyle
	if bookmarked {
		bmStyle = countActiveStyle
	}

	parts := []string{
		likeStyle.Render("♥ " + format.PrettyCount(likes)),
		countStyle.Render("💬 " + format.PrettyCount(item.Comments)),
		bmStyle.Render("⚑ " + format.PrettyCount(bookmarks)),
		countStyle.Render("↗ " + format.PrettyCount(item.Shares)),
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderControls(s *player.Session) string {
	state := "▶"
	if !s.Playing() {
		state = "⏸"
	}
	mute := "🔊"
	if s.Muted() {
		mute = "🔇"
	}
	return fmt.Sprintf("%s  %.2gx  %s  space play/pause  ←/→ scrub", state, s.Rate(), mute)
}
