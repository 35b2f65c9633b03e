// Package ui holds the root Bubble Tea model: it routes input between the
// feed screen and the modals, applies remote configuration, and persists
// pages and preferences through the cache.
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/davecarlow/vertigo/internal/logging"
	"github.com/davecarlow/vertigo/internal/ui/comments"
	"github.com/davecarlow/vertigo/internal/ui/feedview"
	"github.com/davecarlow/vertigo/internal/ui/options"
	"github.com/davecarlow/vertigo/internal/ui/share"
)

// Cache persists feed pages and viewer preferences between runs.
type Cache interface {
	SaveFeed(kind feed.Kind, items []feed.Item) error
	SetPref(key, value string) error
}

// ConfigSource fetches the remote feature configuration and preferences.
type ConfigSource interface {
	GetConfiguration(ctx context.Context) (api.Configuration, error)
	GetPreferences(ctx context.Context) (api.Preferences, error)
}

// ConfigLoadedMsg delivers the remote configuration.
type ConfigLoadedMsg struct {
	Config api.Configuration
	Err    error
}

// PreferencesLoadedMsg delivers the server-side viewer preferences.
type PreferencesLoadedMsg struct {
	Prefs api.Preferences
	Err   error
}

// pageCachedMsg reports a completed feed-cache write.
type pageCachedMsg struct {
	Kind feed.Kind
	Err  error
}

// prefSavedMsg reports a completed preference write.
type prefSavedMsg struct {
	Key string
	Err error
}

var footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// App is the root model.
type App struct {
	feed     feedview.Model
	comments comments.Model
	share    share.Model
	options  options.Model

	cache   Cache
	remote  ConfigSource
	version string

	width  int
	height int
	ready  bool
}

// NewApp assembles the root model. cache and remote may be nil; the app
// then runs without persistence or remote gating.
func NewApp(fv feedview.Model, cm comments.Model, cache Cache, remote ConfigSource, version string) App {
	return App{
		feed:     fv,
		comments: cm,
		share:    share.New(),
		options:  options.New(),
		cache:    cache,
		remote:   remote,
		version:  version,
	}
}

// Init starts the feed and the remote configuration fetches.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.feed.Init(), a.loadRemoteConfig(), a.loadRemotePrefs())
}

// modalOpen reports whether any modal is showing.
func (a App) modalOpen() bool {
	return a.comments.IsOpen() || a.share.IsOpen() || a.options.IsOpen()
}

// closeModals dismisses whichever modal is open and resumes playback. All
// dismissal paths converge here so close behavior stays uniform.
func (a *App) closeModals() {
	a.comments.Close()
	a.share.Close()
	a.options.Close()
	a.feed.SetModalOpen(false)
}

// Update routes messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.feed.SetSize(msg.Width, msg.Height-1)
		a.comments.SetSize(msg.Width, msg.Height)
		a.share.SetSize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.FocusMsg:
		a.feed.Focus()
		return a, nil

	case tea.BlurMsg:
		cmd := a.feed.Blur()
		return a, cmd

	case ConfigLoadedMsg:
		if msg.Err != nil {
			logging.Warn("remote config unavailable", "error", msg.Err)
			return a, nil
		}
		cmd := a.feed.SetForYouEnabled(msg.Config.ForYouEnabled)
		return a, cmd

	case PreferencesLoadedMsg:
		if msg.Err != nil {
			logging.Warn("remote preferences unavailable", "error", msg.Err)
			return a, nil
		}
		var cmds []tea.Cmd
		if msg.Prefs.HideForYou {
			cmds = append(cmds, a.feed.SetForYouEnabled(false))
		}
		if msg.Prefs.MuteOnOpen && !a.feed.Muted() {
			a.feed.ToggleMute()
		}
		if msg.Prefs.DefaultFeed != "" {
			cmds = append(cmds, a.feed.SetKind(msg.Prefs.DefaultFeed))
		}
		return a, tea.Batch(cmds...)

	case feedview.PageLoadedMsg:
		var cmd tea.Cmd
		a.feed, cmd = a.feed.Update(msg)
		if msg.Err == nil {
			return a, tea.Batch(cmd, a.cachePages(msg.Req.Kind))
		}
		return a, cmd

	case pageCachedMsg:
		if msg.Err != nil {
			logging.Warn("feed cache write failed", "kind", msg.Kind, "error", msg.Err)
		}
		return a, nil

	case prefSavedMsg:
		if msg.Err != nil {
			logging.Warn("preference write failed", "key", msg.Key, "error", msg.Err)
		}
		return a, nil

	case comments.LoadedMsg, comments.PostedMsg:
		var cmd tea.Cmd
		a.comments, cmd = a.comments.Update(msg)
		return a, cmd

	case comments.ClosedMsg, share.ClosedMsg, options.ClosedMsg:
		a.closeModals()
		return a, nil

	case share.SelectedMsg:
		// Destinations are local-only for now; the selection just logs.
		logging.Info("shared item", "item", msg.ItemID, "target", msg.Target)
		a.closeModals()
		return a, nil

	case options.RateChangedMsg:
		a.feed.ApplyRate(msg.ItemID, msg.Rate)
		return a, nil

	case options.MuteToggledMsg:
		a.feed.ToggleMute()
		return a, a.persistMute()
	}

	// Everything else (ticks, spinner frames, mutation results) belongs to
	// the feed screen and whichever modal is open.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.feed, cmd = a.feed.Update(msg)
	cmds = append(cmds, cmd)
	if a.comments.IsOpen() {
		a.comments, cmd = a.comments.Update(msg)
		cmds = append(cmds, cmd)
	}
	if a.share.IsOpen() {
		a.share, cmd = a.share.Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Sequence(a.feed.FinalImpression(), tea.Quit)
	}

	if a.modalOpen() {
		// The comments composer leaves the arrow keys unused, so they read
		// as navigating away: close the sheet and let the key fall through
		// to the feed. The share and options cursors own their navigation
		// keys; their close paths are esc and selection.
		if a.comments.IsOpen() && (key == "up" || key == "down") {
			a.closeModals()
			var cmd tea.Cmd
			a.feed, cmd = a.feed.Update(msg)
			return a, cmd
		}
		var cmd tea.Cmd
		switch {
		case a.comments.IsOpen():
			a.comments, cmd = a.comments.Update(msg)
		case a.share.IsOpen():
			a.share, cmd = a.share.Update(msg)
		case a.options.IsOpen():
			a.options, cmd = a.options.Update(msg)
		}
		return a, cmd
	}

	switch key {
	case "q":
		return a, tea.Sequence(a.feed.FinalImpression(), tea.Quit)

	case "c":
		if item, ok := a.feed.ActiveItem(); ok {
			a.feed.SetModalOpen(true)
			cmd := a.comments.Open(item.ID)
			return a, cmd
		}
		return a, nil

	case "s":
		if item, ok := a.feed.ActiveItem(); ok {
			a.feed.SetModalOpen(true)
			a.share.Open(item)
		}
		return a, nil

	case "o":
		if item, ok := a.feed.ActiveItem(); ok {
			a.feed.SetModalOpen(true)
			a.options.Open(item.ID, a.feed.ActiveRate(), a.feed.Muted())
		}
		return a, nil

	case "f":
		cmd := a.feed.CycleKind()
		return a, cmd
	}

	var cmd tea.Cmd
	a.feed, cmd = a.feed.Update(msg)
	return a, cmd
}

// View renders the feed with any open modal layered above it.
func (a App) View() string {
	if !a.ready {
		return "starting…"
	}

	if a.comments.IsOpen() {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, a.comments.View())
	}
	if a.share.IsOpen() {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, a.share.View())
	}
	if a.options.IsOpen() {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, a.options.View())
	}
	footer := footerStyle.Render("vertigo " + a.version + "  ·  f feed  c comments  s share  o options  q quit")
	return lipgloss.JoinVertical(lipgloss.Left, a.feed.View(), footer)
}

func (a App) loadRemoteConfig() tea.Cmd {
	if a.remote == nil {
		return nil
	}
	remote := a.remote
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cfg, err := remote.GetConfiguration(ctx)
		return ConfigLoadedMsg{Config: cfg, Err: err}
	}
}

func (a App) loadRemotePrefs() tea.Cmd {
	if a.remote == nil {
		return nil
	}
	remote := a.remote
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		prefs, err := remote.GetPreferences(ctx)
		return PreferencesLoadedMsg{Prefs: prefs, Err: err}
	}
}

// cachePages snapshots the accumulated items of a feed kind to the cache.
func (a App) cachePages(kind feed.Kind) tea.Cmd {
	if a.cache == nil || kind != a.feed.Kind() {
		return nil
	}
	items := a.feed.Items()
	cache := a.cache
	return func() tea.Msg {
		return pageCachedMsg{Kind: kind, Err: cache.SaveFeed(kind, items)}
	}
}

func (a App) persistMute() tea.Cmd {
	if a.cache == nil {
		return nil
	}
	cache := a.cache
	val := "0"
	if a.feed.Muted() {
		val = "1"
	}
	return func() tea.Msg {
		return prefSavedMsg{Key: "muted", Err: cache.SetPref("muted", val)}
	}
}
