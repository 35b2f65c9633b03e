package feedview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/davecarlow/vertigo/internal/player"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]feed.Page
	calls []string
}

func (f *fakeFetcher) FetchPage(_ context.Context, kind feed.Kind, _, cursor string) (feed.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(kind) + "|" + cursor
	f.calls = append(f.calls, key)
	page, ok := f.pages[key]
	if !ok {
		return feed.Page{}, fmt.Errorf("no page for %s", key)
	}
	return page, nil
}

type fakeMutator struct {
	mu  sync.Mutex
	ops []string
}

func (f *fakeMutator) record(op, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op+":"+id)
	return nil
}

func (f *fakeMutator) Like(_ context.Context, id string) error       { return f.record("like", id) }
func (f *fakeMutator) Unlike(_ context.Context, id string) error     { return f.record("unlike", id) }
func (f *fakeMutator) Bookmark(_ context.Context, id string) error   { return f.record("bookmark", id) }
func (f *fakeMutator) Unbookmark(_ context.Context, id string) error { return f.record("unbookmark", id) }

type fakeSink struct {
	mu   sync.Mutex
	imps []api.Impression
}

func (f *fakeSink) Deliver(_ context.Context, imp api.Impression) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imps = append(f.imps, imp)
}

func mkItem(id string) feed.Item {
	return feed.Item{
		ID:     id,
		Author: feed.Author{ID: "a-" + id, Handle: "user" + id},
		Media:  feed.Media{URL: "https://cdn.example/" + id + ".mp4", DurationSeconds: 30},
		Likes:  10,
	}
}

func mkItems(ids ...string) []feed.Item {
	items := make([]feed.Item, len(ids))
	for i, id := range ids {
		items[i] = mkItem(id)
	}
	return items
}

// exec runs a command tree synchronously, feeding resulting messages back
// into the model. Timer commands must not reach it.
func exec(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			exec(t, m, c)
		}
		return
	}
	var next tea.Cmd
	*m, next = m.Update(msg)
	if _, isPage := msg.(PageLoadedMsg); isPage {
		exec(t, m, next)
	}
}

func newLoaded(t *testing.T, kind feed.Kind, pages map[string]feed.Page) (*Model, *fakeFetcher, *fakeMutator, *fakeSink) {
	t.Helper()
	fetcher := &fakeFetcher{pages: pages}
	mutator := &fakeMutator{}
	sink := &fakeSink{}
	m := New(fetcher, mutator, sink, Options{
		Kind:          kind,
		ForYouEnabled: true,
		Now:           func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	m.SetSize(80, 24)
	exec(t, &m, m.loadFirstPage())
	return &m, fetcher, mutator, sink
}

func keyMsg(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runeMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestFirstPageActivatesTopItem(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2", "3")},
	})

	if m.ActiveIndex() != 0 {
		t.Fatalf("ActiveIndex = %d, want 0", m.ActiveIndex())
	}
	s := m.activeSession()
	if s == nil {
		t.Fatal("active session not mounted")
	}
	if s.State() != player.StatePlaying {
		t.Errorf("active state = %v, want StatePlaying", s.State())
	}
}

func TestLowestVisibleIndexBecomesActive(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2", "3", "4")},
	})

	exec(t, m, m.OnViewableChanged([]int{2, 1}))
	if m.ActiveIndex() != 1 {
		t.Errorf("ActiveIndex = %d, want 1 (lowest visible)", m.ActiveIndex())
	}

	// Same lowest index again is a no-op.
	exec(t, m, m.OnViewableChanged([]int{1, 2}))
	if m.ActiveIndex() != 1 {
		t.Errorf("ActiveIndex = %d, want 1", m.ActiveIndex())
	}
}

func TestMoveMountsWindowAroundActive(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2", "3", "4", "5", "6", "7")},
	})

	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)

	if m.ActiveIndex() != 2 {
		t.Fatalf("ActiveIndex = %d, want 2", m.ActiveIndex())
	}
	for _, id := range []string{"2", "3", "4"} {
		if _, ok := m.sessions[id]; !ok {
			t.Errorf("session %q should be mounted", id)
		}
	}
	if _, ok := m.sessions["1"]; ok {
		t.Error("session 1 should be unmounted outside the window")
	}
}

func TestImpressionFiredOnActiveChange(t *testing.T) {
	m, _, _, sink := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2", "3")},
	})

	m.activeSession().Tick(2.0)
	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)

	if len(sink.imps) != 1 {
		t.Fatalf("impressions = %d, want 1", len(sink.imps))
	}
	imp := sink.imps[0]
	if imp.ItemID != "1" {
		t.Errorf("impression item = %q, want %q", imp.ItemID, "1")
	}
	if imp.WatchedSeconds < 2.0 {
		t.Errorf("WatchedSeconds = %v, want >= 2", imp.WatchedSeconds)
	}
	if imp.Completed {
		t.Error("2s of a 30s item should not be completed")
	}
}

func TestNoImpressionUnderWatchFloor(t *testing.T) {
	m, _, _, sink := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2")},
	})

	m.activeSession().Tick(0.4)
	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)

	if len(sink.imps) != 0 {
		t.Errorf("impressions = %d, want 0 below the watch floor", len(sink.imps))
	}
}

func TestNoImpressionOutsidePersonalizedFeed(t *testing.T) {
	m, _, _, sink := newLoaded(t, feed.KindLocal, map[string]feed.Page{
		"local|": {Items: mkItems("1", "2")},
	})

	m.activeSession().Tick(5.0)
	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)

	if len(sink.imps) != 0 {
		t.Errorf("impressions = %d, want 0 on the local feed", len(sink.imps))
	}
}

func TestRefreshResetsPointerAndReplacesItems(t *testing.T) {
	m, fetcher, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2", "3", "4", "5", "6")},
	})

	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)
	if m.ActiveIndex() != 1 {
		t.Fatalf("ActiveIndex = %d, want 1", m.ActiveIndex())
	}

	fetcher.mu.Lock()
	fetcher.pages["foryou|"] = feed.Page{Items: mkItems("7", "8", "9", "10")}
	fetcher.mu.Unlock()

	exec(t, m, m.Refresh())

	if m.ActiveIndex() != 0 {
		t.Errorf("ActiveIndex after refresh = %d, want 0", m.ActiveIndex())
	}
	if m.scrollTarget != 0 {
		t.Errorf("scrollTarget after refresh = %v, want 0", m.scrollTarget)
	}
	items := m.Items()
	if len(items) != 4 || items[0].ID != "7" {
		t.Errorf("items after refresh = %d starting %q, want 4 starting %q", len(items), items[0].ID, "7")
	}
}

func TestForYouDisabledFallsBackToLocal(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]feed.Page{
		"local|": {Items: mkItems("1")},
	}}
	m := New(fetcher, &fakeMutator{}, &fakeSink{}, Options{
		Kind:          feed.KindForYou,
		ForYouEnabled: false,
	})
	if m.Kind() != feed.KindLocal {
		t.Errorf("Kind = %v, want fallback to KindLocal", m.Kind())
	}

	m2, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1")},
		"local|":  {Items: mkItems("9")},
	})
	exec(t, m2, m2.SetForYouEnabled(false))
	if m2.Kind() != feed.KindLocal {
		t.Errorf("Kind after gate off = %v, want KindLocal", m2.Kind())
	}
}

func TestKindSwitchKeepsPagesCached(t *testing.T) {
	m, fetcher, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2")},
		"local|":  {Items: mkItems("9")},
	})

	exec(t, m, m.SetKind(feed.KindLocal))
	exec(t, m, m.SetKind(feed.KindForYou))

	fetches := 0
	fetcher.mu.Lock()
	for _, c := range fetcher.calls {
		if strings.HasPrefix(c, "foryou|") {
			fetches++
		}
	}
	fetcher.mu.Unlock()
	if fetches != 1 {
		t.Errorf("for-you fetches = %d, want 1 (pages cached across switches)", fetches)
	}
	if len(m.Items()) != 2 {
		t.Errorf("items after switching back = %d, want 2", len(m.Items()))
	}
}

func TestControlsTimeoutAfterUnmountIsHarmless(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2")},
		"local|":  {Items: mkItems("9")},
	})

	s := m.activeSession()
	gen, shown := s.ToggleControls()
	if !shown {
		t.Fatal("controls should be visible after toggle")
	}

	// Switching feeds unmounts the session before the timer fires.
	exec(t, m, m.SetKind(feed.KindLocal))

	var cmd tea.Cmd
	*m, cmd = m.Update(ControlsTimeoutMsg{ItemID: "1", Gen: gen})
	if cmd != nil {
		t.Error("stale controls timeout should produce no command")
	}
}

func TestStaleControlsGenerationIgnored(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1")},
	})

	s := m.activeSession()
	gen1, _ := s.ToggleControls()
	s.ToggleControls()          // hide
	gen2, _ := s.ToggleControls() // re-show

	*m, _ = m.Update(ControlsTimeoutMsg{ItemID: "1", Gen: gen1})
	if !s.ControlsVisible() {
		t.Error("stale generation should not hide controls")
	}
	*m, _ = m.Update(ControlsTimeoutMsg{ItemID: "1", Gen: gen2})
	if s.ControlsVisible() {
		t.Error("current generation should hide controls")
	}
}

func TestScrubLocksNavigation(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2", "3")},
	})

	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyRight))
	exec(t, m, cmd)
	if !m.ScrollLocked() {
		t.Fatal("scrub should lock scrolling")
	}

	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)
	if m.ActiveIndex() != 0 {
		t.Errorf("ActiveIndex = %d, navigation should be locked during scrub", m.ActiveIndex())
	}

	*m, cmd = m.Update(keyMsg(tea.KeyEnter))
	exec(t, m, cmd)
	if m.ScrollLocked() {
		t.Fatal("enter should end the scrub")
	}

	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)
	if m.ActiveIndex() != 1 {
		t.Errorf("ActiveIndex = %d, want 1 after scrub ended", m.ActiveIndex())
	}
}

func TestLikeKeyIsOptimisticAndFiresMutation(t *testing.T) {
	m, _, mutator, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1")},
	})

	var cmd tea.Cmd
	*m, cmd = m.Update(runeMsg('l'))

	s := m.activeSession()
	if !s.Liked() {
		t.Error("like should apply optimistically before the network call")
	}
	if s.DisplayLikes() != 11 {
		t.Errorf("DisplayLikes = %d, want 11", s.DisplayLikes())
	}

	exec(t, m, cmd)
	mutator.mu.Lock()
	defer mutator.mu.Unlock()
	if len(mutator.ops) != 1 || mutator.ops[0] != "like:1" {
		t.Errorf("mutator ops = %v, want [like:1]", mutator.ops)
	}
}

func TestNextPageLoadsNearEnd(t *testing.T) {
	m, fetcher, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|":   {Items: mkItems("1", "2", "3", "4", "5", "6"), NextCursor: "c2"},
		"foryou|c2": {Items: mkItems("7", "8", "9")},
	})

	var cmd tea.Cmd
	for i := 0; i < 3; i++ {
		*m, cmd = m.Update(keyMsg(tea.KeyDown))
		exec(t, m, cmd)
	}

	fetcher.mu.Lock()
	calls := len(fetcher.calls)
	fetcher.mu.Unlock()
	if calls < 2 {
		t.Fatalf("fetch calls = %d, want second page fetched near end", calls)
	}
	if len(m.Items()) != 9 {
		t.Errorf("items = %d, want 9 after second page", len(m.Items()))
	}
}

func TestEndOfFeedSentinel(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {},
	})

	view := m.View()
	if !strings.Contains(view, "caught up") {
		t.Error("empty exhausted personalized feed should render the end marker")
	}

	m2, _, _, _ := newLoaded(t, feed.KindLocal, map[string]feed.Page{
		"local|": {},
	})
	if strings.Contains(m2.View(), "caught up") {
		t.Error("local feed should not render the end marker")
	}

	m3, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1")},
	})
	if strings.Contains(m3.View(), "caught up") {
		t.Error("a non-empty feed should not render the end marker")
	}
}

func TestModalPausePreservesPosition(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1")},
	})

	s := m.activeSession()
	s.Tick(4.0)
	m.SetModalOpen(true)
	if s.State() != player.StatePausedAuto {
		t.Fatalf("state = %v, want StatePausedAuto behind modal", s.State())
	}
	if s.Position() != 4.0 {
		t.Errorf("Position = %v, want 4.0 preserved across the modal", s.Position())
	}
	m.SetModalOpen(false)
	if s.State() != player.StatePlaying {
		t.Errorf("state = %v, want StatePlaying after modal close", s.State())
	}
}

func TestBlurPausesAndFlushesImpression(t *testing.T) {
	m, _, _, sink := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1")},
	})

	s := m.activeSession()
	s.Tick(3.0)
	exec(t, m, m.Blur())

	if s.State() != player.StatePausedAuto {
		t.Errorf("state = %v, want StatePausedAuto after blur", s.State())
	}
	if len(sink.imps) != 1 || sink.imps[0].ItemID != "1" {
		t.Errorf("impressions after blur = %v, want one for item 1", sink.imps)
	}

	m.Focus()
	if s.State() != player.StatePlaying {
		t.Errorf("state = %v, want StatePlaying after focus", s.State())
	}
}

func TestBlurRefocusDoesNotDoubleReport(t *testing.T) {
	m, _, _, sink := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2")},
	})

	s := m.activeSession()
	s.Tick(2.0)
	exec(t, m, m.Blur())
	m.Focus()
	s.Tick(1.5)

	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)

	if len(sink.imps) != 2 {
		t.Fatalf("impressions = %d, want 2 (blur flush + active change)", len(sink.imps))
	}
	if got := sink.imps[0].WatchedSeconds; got != 2.0 {
		t.Errorf("blur impression = %vs, want 2s", got)
	}
	if got := sink.imps[1].WatchedSeconds; got != 1.5 {
		t.Errorf("post-refocus impression = %vs, want 1.5s (not re-reporting the first interval)", got)
	}
}

func TestScrollSpringEasesWindow(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2", "3")},
	})

	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)

	if m.scrollGap() == 0 {
		t.Fatal("the window should trail the pointer right after a move")
	}
	lines := strings.Split(m.View(), "\n")
	if len(lines) < 2 || lines[1] != "" {
		t.Error("a mid-flight view should pad the window with blank lines")
	}

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 300; i++ {
		at = at.Add(250 * time.Millisecond)
		*m, _ = m.Update(PlaybackTickMsg{At: at})
	}

	if got := m.scrollGap(); got != 0 {
		t.Errorf("scrollGap after settling = %d, want 0", got)
	}
}

func TestCycleKindIncludesProfileWhenSet(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]feed.Page{
		"local|":   {Items: mkItems("1")},
		"profile|": {Items: mkItems("2")},
		"foryou|":  {Items: mkItems("3")},
	}}
	m := New(fetcher, &fakeMutator{}, &fakeSink{}, Options{
		Kind:          feed.KindLocal,
		ProfileID:     "u7",
		ForYouEnabled: true,
		Now:           func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	})
	m.SetSize(80, 24)
	exec(t, &m, m.loadFirstPage())

	exec(t, &m, m.CycleKind())
	if m.Kind() != feed.KindProfile {
		t.Fatalf("Kind = %v, want KindProfile next after local", m.Kind())
	}
	if !strings.Contains(m.View(), "Profile") {
		t.Error("tab row should show the profile feed")
	}

	// Cycling off the profile feed wraps back to the start.
	exec(t, &m, m.CycleKind())
	if m.Kind() != feed.KindForYou {
		t.Errorf("Kind = %v, want KindForYou after wrapping", m.Kind())
	}

	// Without a profile ID the profile feed is not selectable.
	m2, _, _, _ := newLoaded(t, feed.KindLocal, map[string]feed.Page{
		"local|":  {Items: mkItems("1")},
		"foryou|": {Items: mkItems("3")},
	})
	exec(t, m2, m2.CycleKind())
	if m2.Kind() != feed.KindForYou {
		t.Errorf("Kind = %v, want KindForYou (profile skipped without an ID)", m2.Kind())
	}
}

func TestPerItemRateOverride(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2")},
	})

	m.ApplyRate("1", 2.0)
	if got := m.activeSession().Rate(); got != 2.0 {
		t.Errorf("Rate = %v, want 2.0", got)
	}

	// The override survives an unmount/remount cycle.
	var cmd tea.Cmd
	*m, cmd = m.Update(keyMsg(tea.KeyDown))
	exec(t, m, cmd)
	exec(t, m, m.OnViewableChanged([]int{0}))
	if got := m.activeSession().Rate(); got != 2.0 {
		t.Errorf("Rate after remount = %v, want 2.0", got)
	}
}

func TestToggleMuteAppliesToMountedSessions(t *testing.T) {
	m, _, _, _ := newLoaded(t, feed.KindForYou, map[string]feed.Page{
		"foryou|": {Items: mkItems("1", "2")},
	})

	m.ToggleMute()
	if !m.Muted() {
		t.Fatal("Muted should be true after toggle")
	}
	for id, s := range m.sessions {
		if !s.Muted() {
			t.Errorf("session %q should be muted", id)
		}
	}
}
