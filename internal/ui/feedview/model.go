// Package feedview is the feed screen: it owns one pager per feed kind, the
// active-item pointer, the per-item playback sessions for the mounted
// window, and the watch-impression bookkeeping for the personalized feed.
package feedview

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/harmonica"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/davecarlow/vertigo/internal/logging"
	"github.com/davecarlow/vertigo/internal/player"
)

// Fetcher retrieves feed pages.
type Fetcher interface {
	FetchPage(ctx context.Context, kind feed.Kind, profileID, cursor string) (feed.Page, error)
}

// Mutator issues the fire-and-forget engagement mutations.
type Mutator interface {
	Like(ctx context.Context, itemID string) error
	Unlike(ctx context.Context, itemID string) error
	Bookmark(ctx context.Context, itemID string) error
	Unbookmark(ctx context.Context, itemID string) error
}

// ImpressionSink records watch impressions.
type ImpressionSink interface {
	Deliver(ctx context.Context, imp api.Impression)
}

// mountRadius is how many items around the active one keep live sessions.
const mountRadius = 1

// loadAhead triggers the next page fetch when the active index gets within
// this many items of the end.
const loadAhead = 3

// scrubStep is the position change per scrub key press, as a fraction of
// the media duration (stand-in for horizontal gesture offset).
const scrubStep = 0.05

// minImpressionSeconds is the watch-time floor below which no impression
// is recorded.
const minImpressionSeconds = 1.0

// KeyMap is the feed screen key bindings.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	PlayPause key.Binding
	Controls  key.Binding
	Like      key.Binding
	Bookmark  key.Binding
	Watch     key.Binding
	ScrubBack key.Binding
	ScrubFwd  key.Binding
	Refresh   key.Binding
	Mute      key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next")),
		PlayPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Controls:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "controls")),
		Like:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		Bookmark:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bookmark")),
		Watch:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "watch anyway")),
		ScrubBack: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "scrub back")),
		ScrubFwd:  key.NewBinding(key.WithKeys("right", "L"), key.WithHelp("→", "scrub forward")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Mute:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
	}
}

// Options configures a feed screen.
type Options struct {
	Kind          feed.Kind
	ProfileID     string
	ForYouEnabled bool
	Muted         bool
	TickInterval  time.Duration
	Now           func() time.Time
	NewEngine     func() player.Engine
}

// Model is the feed screen.
type Model struct {
	fetcher Fetcher
	mutator Mutator
	sink    ImpressionSink

	kind      feed.Kind
	profileID string
	pagers    map[feed.Kind]*feed.Pager

	active   int
	sessions map[string]*player.Session
	rates    map[string]float64 // per-item playback-rate overrides
	muted    bool

	focused   bool
	modalOpen bool

	forYouEnabled bool

	keys     KeyMap
	spinner  spinner.Model
	progress progress.Model
	width    int
	height   int
	tick     time.Duration
	now      func() time.Time
	newEng   func() player.Engine
	lastTick time.Time

	// Smooth scroll toward the active card.
	scrollSpring harmonica.Spring
	scrollPos    float64
	scrollVel    float64
	scrollTarget float64
}

// New creates a feed screen.
func New(fetcher Fetcher, mutator Mutator, sink ImpressionSink, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 250 * time.Millisecond
	}
	if opts.NewEngine == nil {
		opts.NewEngine = func() player.Engine { return player.NewSimEngine() }
	}
	kind := opts.Kind
	if kind == "" {
		kind = feed.KindForYou
	}
	if kind == feed.KindForYou && !opts.ForYouEnabled {
		kind = feed.KindLocal
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	bar := progress.New(progress.WithSolidFill("212"), progress.WithoutPercentage())

	return Model{
		fetcher:       fetcher,
		mutator:       mutator,
		sink:          sink,
		kind:          kind,
		profileID:     opts.ProfileID,
		pagers:        make(map[feed.Kind]*feed.Pager),
		sessions:      make(map[string]*player.Session),
		rates:         make(map[string]float64),
		muted:         opts.Muted,
		focused:       true,
		forYouEnabled: opts.ForYouEnabled,
		keys:          DefaultKeyMap(),
		spinner:       sp,
		progress:      bar,
		tick:          opts.TickInterval,
		now:           opts.Now,
		newEng:        opts.NewEngine,
		scrollSpring:  harmonica.NewSpring(harmonica.FPS(60), 6.0, 0.8),
	}
}

// Init kicks off the first page fetch and the playback clock.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadFirstPage(), m.scheduleTick(), m.spinner.Tick)
}

// pager returns (creating if needed) the pager for a feed kind. Each kind
// accumulates and caches independently; switching back does not refetch.
func (m *Model) pager(kind feed.Kind) *feed.Pager {
	p, ok := m.pagers[kind]
	if !ok {
		p = feed.NewPager(kind, m.profileID)
		m.pagers[kind] = p
	}
	return p
}

// current returns the pager backing the selected feed kind.
func (m *Model) current() *feed.Pager { return m.pager(m.kind) }

// Kind returns the selected feed kind.
func (m *Model) Kind() feed.Kind { return m.kind }

// Items returns the accumulated items of the selected feed.
func (m *Model) Items() []feed.Item { return m.current().Items() }

// ActiveIndex returns the active-item pointer.
func (m *Model) ActiveIndex() int { return m.active }

// ActiveItem returns the active item, if any.
func (m *Model) ActiveItem() (feed.Item, bool) {
	p := m.current()
	if m.active < 0 || m.active >= p.Len() {
		return feed.Item{}, false
	}
	return p.At(m.active), true
}

// activeSession returns the session of the active item, if mounted.
func (m *Model) activeSession() *player.Session {
	item, ok := m.ActiveItem()
	if !ok {
		return nil
	}
	return m.sessions[item.ID]
}

// ActiveSession exposes the active item's live session for read access.
func (m *Model) ActiveSession() *player.Session { return m.activeSession() }

// LoadFirst fetches the first page of the selected feed without starting
// the playback clock; Init does both.
func (m *Model) LoadFirst() tea.Cmd { return m.loadFirstPage() }

// ScrollLocked reports whether a child player has exclusive control of the
// scroll gesture (scrub in progress).
func (m *Model) ScrollLocked() bool {
	if s := m.activeSession(); s != nil {
		return s.Scrubbing()
	}
	return false
}

// Muted reports the current mute flag.
func (m *Model) Muted() bool { return m.muted }

// ActiveRate returns the playback rate of the active item, or 1.0 when
// nothing is mounted.
func (m *Model) ActiveRate() float64 {
	if s := m.activeSession(); s != nil {
		return s.Rate()
	}
	return 1.0
}

// Seed preloads cached items for a feed kind.
func (m *Model) Seed(kind feed.Kind, items []feed.Item) {
	m.pager(kind).Seed(items)
	if kind == m.kind {
		m.mountWindow()
	}
}

// SetSize updates the viewport dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetForYouEnabled applies the remote feature gate. Disabling it while the
// personalized feed is selected falls back to the local feed.
func (m *Model) SetForYouEnabled(enabled bool) tea.Cmd {
	m.forYouEnabled = enabled
	if !enabled && m.kind == feed.KindForYou {
		return m.SetKind(feed.KindLocal)
	}
	return nil
}

// SetKind switches the selected feed kind, resetting the active pointer and
// scroll position. The previous kind's pages stay cached.
func (m *Model) SetKind(kind feed.Kind) tea.Cmd {
	if kind == feed.KindForYou && !m.forYouEnabled {
		kind = feed.KindLocal
	}
	if kind == m.kind {
		return nil
	}

	impCmd := m.deactivateActive()
	m.unmountAll()
	m.kind = kind
	m.active = 0
	m.scrollPos, m.scrollVel, m.scrollTarget = 0, 0, 0
	m.mountWindow()

	var load tea.Cmd
	if !m.current().Started() {
		load = m.loadFirstPage()
	}
	return tea.Batch(impCmd, load)
}

// kinds returns the selectable feed kinds: the standard tabs, plus the
// profile feed when a profile ID was given.
func (m *Model) kinds() []feed.Kind {
	if m.profileID == "" {
		return feed.Kinds
	}
	return append(append([]feed.Kind{}, feed.Kinds...), feed.KindProfile)
}

// CycleKind selects the next feed kind, skipping a disabled for-you feed.
func (m *Model) CycleKind() tea.Cmd {
	kinds := m.kinds()
	idx := 0
	for i, k := range kinds {
		if k == m.kind {
			idx = i
			break
		}
	}
	for range kinds {
		idx = (idx + 1) % len(kinds)
		next := kinds[idx]
		if next == feed.KindForYou && !m.forYouEnabled {
			continue
		}
		return m.SetKind(next)
	}
	return nil
}

// Refresh discards accumulated pages and refetches the first page; the
// pointer and scroll reset to the top. Concurrent refreshes collapse.
func (m *Model) Refresh() tea.Cmd {
	impCmd := m.deactivateActive()
	req, ok := m.current().BeginRefresh()
	if !ok {
		return impCmd
	}
	m.active = 0
	m.scrollPos, m.scrollVel, m.scrollTarget = 0, 0, 0
	return tea.Batch(impCmd, m.fetchCmd(req))
}

// Blur pauses playback when the screen loses focus and flushes the pending
// impression so it is not lost.
func (m *Model) Blur() tea.Cmd {
	m.focused = false
	var impCmd tea.Cmd
	if s := m.activeSession(); s != nil {
		impCmd = m.impressionCmd(s)
		// The session stays active across a blur; clear the watch clock so
		// a later flush reports only the interval after the refocus.
		s.ResetWatched()
		s.AutoPause()
	}
	return impCmd
}

// Focus resumes playback when the screen regains focus.
func (m *Model) Focus() {
	m.focused = true
	if m.modalOpen {
		return
	}
	if s := m.activeSession(); s != nil {
		s.AutoResume()
	}
}

// SetModalOpen pauses/resumes the active item around a blocking modal.
// Position is preserved across the pause.
func (m *Model) SetModalOpen(open bool) {
	m.modalOpen = open
	s := m.activeSession()
	if s == nil {
		return
	}
	if open {
		s.AutoPause()
	} else if m.focused {
		s.AutoResume()
	}
}

// ApplyRate records a per-item playback-rate override and applies it to the
// live session if mounted. Only the options modal calls this.
func (m *Model) ApplyRate(itemID string, rate float64) {
	m.rates[itemID] = rate
	if s, ok := m.sessions[itemID]; ok {
		s.SetRate(rate)
	}
}

// ToggleMute flips the mute flag for all mounted sessions.
func (m *Model) ToggleMute() {
	m.muted = !m.muted
	for _, s := range m.sessions {
		s.SetMuted(m.muted)
	}
}

// FinalImpression returns the command that records the active item's
// impression; the app fires it on quit so the last watch is not lost.
func (m *Model) FinalImpression() tea.Cmd {
	if s := m.activeSession(); s != nil {
		return m.impressionCmd(s)
	}
	return nil
}

// Update handles feed screen messages and keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case PageLoadedMsg:
		p := m.pager(msg.Req.Kind)
		p.Complete(msg.Req, msg.Page, msg.Err)
		if msg.Err != nil {
			logging.Warn("page fetch failed", "kind", msg.Req.Kind, "error", msg.Err)
			return m, nil
		}
		if msg.Req.Kind == m.kind {
			m.clampActive()
			m.mountWindow()
			cmd := m.loadNextIfNeeded()
			return m, cmd
		}
		return m, nil

	case PlaybackTickMsg:
		dt := m.tick.Seconds()
		if !m.lastTick.IsZero() {
			if d := msg.At.Sub(m.lastTick).Seconds(); d > 0 {
				dt = d
			}
		}
		m.lastTick = msg.At
		if s := m.activeSession(); s != nil {
			s.Tick(dt)
		}
		m.scrollPos, m.scrollVel = m.scrollSpring.Update(m.scrollPos, m.scrollVel, m.scrollTarget)
		return m, m.scheduleTick()

	case ControlsTimeoutMsg:
		// The session may have been unmounted while the timer was pending;
		// that must neither error nor mutate anything.
		if s, ok := m.sessions[msg.ItemID]; ok {
			s.HideControls(msg.Gen)
		}
		return m, nil

	case MutationDoneMsg:
		if msg.Err != nil {
			// Fire-and-forget: optimistic state stands, the failure is only
			// logged.
			logging.Warn("mutation failed", "op", msg.Op, "item", msg.ItemID, "error", msg.Err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	s := m.activeSession()

	// A scrub in progress owns the gesture: navigation is locked until the
	// scrub ends.
	if s != nil && s.Scrubbing() {
		switch {
		case key.Matches(msg, m.keys.ScrubBack):
			s.ScrubMove(s.Progress() - scrubStep)
		case key.Matches(msg, m.keys.ScrubFwd):
			s.ScrubMove(s.Progress() + scrubStep)
		case key.Matches(msg, m.keys.PlayPause), key.Matches(msg, m.keys.Watch):
			s.ScrubEnd()
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		return m.move(1)
	case key.Matches(msg, m.keys.Up):
		return m.move(-1)
	case key.Matches(msg, m.keys.Refresh):
		return m.Refresh()
	case key.Matches(msg, m.keys.Mute):
		m.ToggleMute()
		return nil
	}

	if s == nil {
		return nil
	}
	switch {
	case key.Matches(msg, m.keys.PlayPause):
		s.TogglePlayPause()
	case key.Matches(msg, m.keys.Watch):
		s.Acknowledge()
	case key.Matches(msg, m.keys.Controls):
		if gen, shown := s.ToggleControls(); shown {
			return m.controlsTimeoutCmd(s.Item().ID, gen)
		}
	case key.Matches(msg, m.keys.Like):
		return m.toggleLike(s)
	case key.Matches(msg, m.keys.Bookmark):
		return m.toggleBookmark(s)
	case key.Matches(msg, m.keys.ScrubBack):
		s.ScrubStart()
		s.ScrubMove(s.Progress() - scrubStep)
	case key.Matches(msg, m.keys.ScrubFwd):
		s.ScrubStart()
		s.ScrubMove(s.Progress() + scrubStep)
	}
	return nil
}

// move shifts the viewport by delta items and reports the new visible
// window to the viewability callback.
func (m *Model) move(delta int) tea.Cmd {
	p := m.current()
	if p.Len() == 0 {
		return nil
	}
	target := m.active + delta
	if target < 0 || target >= p.Len() {
		return nil
	}
	// One full-height card per viewport; the window is the target row.
	cmd := m.OnViewableChanged([]int{target})
	return tea.Batch(cmd, m.loadNextIfNeeded())
}

// OnViewableChanged is the viewability callback and the sole writer of the
// active-item pointer: the lowest visible index becomes active. The pointer
// is updated before the previous item's impression is computed.
func (m *Model) OnViewableChanged(visible []int) tea.Cmd {
	if len(visible) == 0 {
		return nil
	}
	lowest := visible[0]
	for _, idx := range visible[1:] {
		if idx < lowest {
			lowest = idx
		}
	}
	p := m.current()
	if lowest < 0 || lowest >= p.Len() || lowest == m.active {
		return nil
	}

	prev := m.activeSession()
	m.active = lowest
	m.scrollTarget = float64(lowest)

	var impCmd tea.Cmd
	if prev != nil {
		impCmd = m.impressionCmd(prev)
		prev.Deactivate()
	}

	m.mountWindow()
	if s := m.activeSession(); s != nil {
		s.Activate(m.focused, m.modalOpen)
	}
	return impCmd
}

// deactivateActive records the active item's impression and deactivates its
// session. Used on refresh and kind switches.
func (m *Model) deactivateActive() tea.Cmd {
	s := m.activeSession()
	if s == nil {
		return nil
	}
	cmd := m.impressionCmd(s)
	s.Deactivate()
	return cmd
}

// mountWindow creates sessions for items within mountRadius of the active
// index and destroys the rest, then activates the active item's session.
func (m *Model) mountWindow() {
	p := m.current()
	if p.Len() == 0 {
		m.unmountAll()
		return
	}
	m.clampActive()

	keep := make(map[string]bool, 2*mountRadius+1)
	for i := m.active - mountRadius; i <= m.active+mountRadius; i++ {
		if i < 0 || i >= p.Len() {
			continue
		}
		item := p.At(i)
		keep[item.ID] = true
		if _, ok := m.sessions[item.ID]; !ok {
			rate := m.rates[item.ID]
			m.sessions[item.ID] = player.NewSession(item, m.newEng(), rate, m.muted)
		}
	}
	for id, s := range m.sessions {
		if !keep[id] {
			s.Deactivate()
			delete(m.sessions, id)
		}
	}

	if s := m.activeSession(); s != nil && s.State() == player.StateInactive {
		s.Activate(m.focused, m.modalOpen)
	}
}

func (m *Model) unmountAll() {
	for id, s := range m.sessions {
		s.Deactivate()
		delete(m.sessions, id)
	}
}

func (m *Model) clampActive() {
	p := m.current()
	if p.Len() == 0 {
		m.active = 0
		return
	}
	if m.active >= p.Len() {
		m.active = p.Len() - 1
	}
	if m.active < 0 {
		m.active = 0
	}
}

// loadFirstPage fetches page one of the selected feed.
func (m *Model) loadFirstPage() tea.Cmd {
	req, ok := m.current().BeginNext()
	if !ok {
		return nil
	}
	return m.fetchCmd(req)
}

// loadNextIfNeeded fetches the next page when the pointer approaches the
// end of the accumulated items. No-op while a fetch is in flight or at the
// terminal cursor.
func (m *Model) loadNextIfNeeded() tea.Cmd {
	p := m.current()
	if p.Len()-m.active > loadAhead && p.Started() {
		return nil
	}
	req, ok := p.BeginNext()
	if !ok {
		return nil
	}
	return m.fetchCmd(req)
}

func (m *Model) fetchCmd(req feed.Request) tea.Cmd {
	fetcher := m.fetcher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		page, err := fetcher.FetchPage(ctx, req.Kind, req.ProfileID, req.Cursor)
		return PageLoadedMsg{Req: req, Page: page, Err: err}
	}
}

func (m *Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return PlaybackTickMsg{At: t}
	})
}

func (m *Model) controlsTimeoutCmd(itemID string, gen int) tea.Cmd {
	return tea.Tick(player.ControlsDwell, func(time.Time) tea.Msg {
		return ControlsTimeoutMsg{ItemID: itemID, Gen: gen}
	})
}

// impressionCmd builds the watch-impression command for a session. Only the
// personalized feed records impressions, and only past the watch-time floor.
func (m *Model) impressionCmd(s *player.Session) tea.Cmd {
	if m.kind != feed.KindForYou || m.sink == nil {
		return nil
	}
	if s.Watched() < minImpressionSeconds {
		return nil
	}
	imp := api.Impression{
		ItemID:         s.Item().ID,
		WatchedSeconds: s.Watched(),
		Completed:      s.Completed(),
		RecordedAt:     m.now(),
	}
	sink := m.sink
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sink.Deliver(ctx, imp)
		return ImpressionSentMsg{ItemID: imp.ItemID}
	}
}

// toggleLike applies the optimistic toggle and issues the matching network
// mutation. The outcome never reverts the local flag.
func (m *Model) toggleLike(s *player.Session) tea.Cmd {
	liked := s.ToggleLike()
	itemID := s.Item().ID
	mut := m.mutator
	if mut == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var err error
		op := "unlike"
		if liked {
			op = "like"
			err = mut.Like(ctx, itemID)
		} else {
			err = mut.Unlike(ctx, itemID)
		}
		return MutationDoneMsg{Op: op, ItemID: itemID, Err: err}
	}
}

func (m *Model) toggleBookmark(s *player.Session) tea.Cmd {
	bookmarked := s.ToggleBookmark()
	itemID := s.Item().ID
	mut := m.mutator
	if mut == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var err error
		op := "unbookmark"
		if bookmarked {
			op = "bookmark"
			err = mut.Bookmark(ctx, itemID)
		} else {
			err = mut.Unbookmark(ctx, itemID)
		}
		return MutationDoneMsg{Op: op, ItemID: itemID, Err: err}
	}
}
