package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/davecarlow/vertigo/internal/player"
	"github.com/davecarlow/vertigo/internal/ui/comments"
	"github.com/davecarlow/vertigo/internal/ui/feedview"
	"github.com/davecarlow/vertigo/internal/ui/options"
	"github.com/davecarlow/vertigo/internal/ui/share"
)

type stubFetcher struct{ items []feed.Item }

func (s *stubFetcher) FetchPage(_ context.Context, kind feed.Kind, _, _ string) (feed.Page, error) {
	return feed.Page{Items: s.items}, nil
}

type stubMutator struct{}

func (stubMutator) Like(context.Context, string) error       { return nil }
func (stubMutator) Unlike(context.Context, string) error     { return nil }
func (stubMutator) Bookmark(context.Context, string) error   { return nil }
func (stubMutator) Unbookmark(context.Context, string) error { return nil }

type stubSink struct{}

func (stubSink) Deliver(context.Context, api.Impression) {}

type stubComments struct{}

func (stubComments) ListComments(context.Context, string, string) (api.CommentPage, error) {
	return api.CommentPage{}, nil
}
func (stubComments) PostComment(context.Context, string, string) error { return nil }

type recordingCache struct {
	mu    sync.Mutex
	feeds map[string]int
	prefs map[string]string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{feeds: map[string]int{}, prefs: map[string]string{}}
}

func (c *recordingCache) SaveFeed(kind feed.Kind, items []feed.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feeds[string(kind)] = len(items)
	return nil
}

func (c *recordingCache) SetPref(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs[key] = value
	return nil
}

func newTestApp(t *testing.T, cache Cache) App {
	t.Helper()
	items := make([]feed.Item, 3)
	for i := range items {
		items[i] = feed.Item{
			ID:     fmt.Sprintf("%d", i+1),
			Author: feed.Author{Handle: fmt.Sprintf("user%d", i+1)},
			Media:  feed.Media{URL: "https://cdn.example/v.mp4", DurationSeconds: 30},
		}
	}
	fv := feedview.New(&stubFetcher{items: items}, stubMutator{}, stubSink{}, feedview.Options{
		Kind:          feed.KindForYou,
		ForYouEnabled: true,
	})
	app := NewApp(fv, comments.New(stubComments{}, nil), cache, nil, "test")

	model, _ := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return model.(App)
}

// runCmd executes a command tree and feeds the messages back into the app.
func runCmd(t *testing.T, app App, cmd tea.Cmd) App {
	t.Helper()
	if cmd == nil {
		return app
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			app = runCmd(t, app, c)
		}
		return app
	}
	model, next := app.Update(msg)
	app = model.(App)
	if _, isPage := msg.(feedview.PageLoadedMsg); isPage {
		app = runCmd(t, app, next)
	}
	return app
}

func loadFeed(t *testing.T, app App) App {
	t.Helper()
	cmd := app.feed.LoadFirst()
	return runCmd(t, app, cmd)
}

func TestCommentsModalPausesAndClosesUniformly(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	app = model.(App)
	if !app.comments.IsOpen() {
		t.Fatal("comments modal should open on c")
	}
	s := app.feed.ActiveSession()
	if s == nil || s.State() != player.StatePausedAuto {
		t.Fatal("playback should pause behind the modal")
	}

	model, _ = app.Update(comments.ClosedMsg{})
	app = model.(App)
	if app.comments.IsOpen() {
		t.Error("modal should be closed after ClosedMsg")
	}
	if got := app.feed.ActiveSession().State(); got != player.StatePlaying {
		t.Errorf("state after close = %v, want StatePlaying", got)
	}
}

func TestNavigatingAwayClosesCommentsModal(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	app = model.(App)
	if !app.comments.IsOpen() {
		t.Fatal("comments modal should open on c")
	}

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(App)
	app = runCmd(t, app, cmd)

	if app.comments.IsOpen() {
		t.Error("navigating away should close the modal")
	}
	if app.feed.ActiveIndex() != 1 {
		t.Errorf("ActiveIndex = %d, want 1 (the key falls through)", app.feed.ActiveIndex())
	}
	if got := app.feed.ActiveSession().State(); got != player.StatePlaying {
		t.Errorf("state = %v, want StatePlaying after navigate-away close", got)
	}
}

func TestTypingInComposerKeepsModalOpen(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	app = model.(App)
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	app = model.(App)

	if !app.comments.IsOpen() {
		t.Error("typing into the composer should not close the modal")
	}
	if app.feed.ActiveIndex() != 0 {
		t.Errorf("ActiveIndex = %d, want 0 (typed keys stay in the composer)", app.feed.ActiveIndex())
	}
}

func TestOptionsKeysMoveRateCursor(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	app = model.(App)
	if !app.options.IsOpen() {
		t.Fatal("options modal should open on o")
	}

	// Down moves the rate cursor from 1x to 1.5x; it must not close the
	// modal or move the feed.
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(App)
	if !app.options.IsOpen() {
		t.Fatal("down should navigate the options modal, not close it")
	}
	if app.feed.ActiveIndex() != 0 {
		t.Errorf("ActiveIndex = %d, want 0 (feed must not scroll)", app.feed.ActiveIndex())
	}

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(App)
	if cmd == nil {
		t.Fatal("enter should emit a rate change")
	}
	model, _ = app.Update(cmd())
	app = model.(App)

	if got := app.feed.ActiveRate(); got != 1.5 {
		t.Errorf("ActiveRate = %v, want 1.5", got)
	}
}

func TestShareKeysMoveSelection(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	app = model.(App)
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(App)
	if !app.share.IsOpen() {
		t.Fatal("down should navigate the share sheet, not close it")
	}

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(App)
	if cmd == nil {
		t.Fatal("enter should emit a selection")
	}
	msg := cmd()
	sel, ok := msg.(share.SelectedMsg)
	if !ok {
		t.Fatalf("message = %T, want share.SelectedMsg", msg)
	}
	if sel.Target != "Direct message" {
		t.Errorf("Target = %q, want the second destination", sel.Target)
	}

	model, _ = app.Update(msg)
	app = model.(App)
	if app.share.IsOpen() {
		t.Error("sheet should close after the selection")
	}
}

func TestRemoteConfigDisablesForYou(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, cmd := app.Update(ConfigLoadedMsg{Config: api.Configuration{ForYouEnabled: false}})
	app = model.(App)
	app = runCmd(t, app, cmd)

	if app.feed.Kind() != feed.KindLocal {
		t.Errorf("Kind = %v, want KindLocal after the gate turns off", app.feed.Kind())
	}
}

func TestRateChangeRoutedToFeed(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, _ := app.Update(options.RateChangedMsg{ItemID: "1", Rate: 2.0})
	app = model.(App)

	if got := app.feed.ActiveRate(); got != 2.0 {
		t.Errorf("ActiveRate = %v, want 2.0", got)
	}
}

func TestMuteTogglePersisted(t *testing.T) {
	cache := newRecordingCache()
	app := loadFeed(t, newTestApp(t, cache))

	model, cmd := app.Update(options.MuteToggledMsg{})
	app = model.(App)
	app = runCmd(t, app, cmd)

	if !app.feed.Muted() {
		t.Fatal("feed should be muted after toggle")
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.prefs["muted"] != "1" {
		t.Errorf("persisted muted pref = %q, want %q", cache.prefs["muted"], "1")
	}
}

func TestPagesCachedOnLoad(t *testing.T) {
	cache := newRecordingCache()
	loadFeed(t, newTestApp(t, cache))

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.feeds["foryou"] != 3 {
		t.Errorf("cached items = %d, want 3", cache.feeds["foryou"])
	}
}

func TestShareSelectionCloses(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	app = model.(App)
	model, _ = app.Update(share.SelectedMsg{ItemID: "1", Target: "Copy link"})
	app = model.(App)

	if app.share.IsOpen() {
		t.Error("sheet should close after a selection")
	}
	if got := app.feed.ActiveSession().State(); got != player.StatePlaying {
		t.Errorf("state = %v, want StatePlaying after selection", got)
	}
}

func TestViewShowsFeedWhenNoModal(t *testing.T) {
	app := loadFeed(t, newTestApp(t, nil))
	view := app.View()
	if !strings.Contains(view, "@user1") {
		t.Errorf("view should render the active card, got:\n%s", view)
	}
	if !strings.Contains(view, "vertigo test") {
		t.Error("view should show the version in the footer")
	}
}
