package feed

// Pager accumulates pages for one feed kind. It is written from the UI event
// loop only, so there is no locking: Begin* hands out a Request describing
// the fetch to run, and Complete applies the response. Responses that belong
// to a superseded generation (a refresh happened in between) are dropped.
type Pager struct {
	kind      Kind
	profileID string

	items []Item
	seen  map[string]bool

	cursor    string
	started   bool // first page has been applied
	exhausted bool

	fetching   bool
	refreshing bool
	gen        int

	lastErr error
}

// Request identifies a single fetch handed out by BeginNext or BeginRefresh.
type Request struct {
	Kind      Kind
	ProfileID string
	Cursor    string

	gen     int
	refresh bool
}

// Refresh reports whether this request replaces the accumulated pages.
func (r Request) Refresh() bool { return r.refresh }

// NewPager creates a pager for the given feed kind. profileID is only
// meaningful for KindProfile.
func NewPager(kind Kind, profileID string) *Pager {
	return &Pager{
		kind:      kind,
		profileID: profileID,
		seen:      make(map[string]bool),
	}
}

// Kind returns the feed kind this pager is backed by.
func (p *Pager) Kind() Kind { return p.kind }

// Items returns the accumulated, deduplicated item sequence.
func (p *Pager) Items() []Item { return p.items }

// Len returns the number of accumulated items.
func (p *Pager) Len() int { return len(p.items) }

// At returns the item at index i.
func (p *Pager) At(i int) Item { return p.items[i] }

// Fetching reports whether a next-page fetch is in flight.
func (p *Pager) Fetching() bool { return p.fetching }

// Refreshing reports whether a refresh is in flight.
func (p *Pager) Refreshing() bool { return p.refreshing }

// Started reports whether at least one page has been applied.
func (p *Pager) Started() bool { return p.started }

// Exhausted reports whether the feed returned a terminal page.
func (p *Pager) Exhausted() bool { return p.exhausted }

// Err returns the most recent fetch error, cleared by the next success.
func (p *Pager) Err() error { return p.lastErr }

// Seed preloads items (e.g. from the local cache) without consuming a
// fetch. It only applies before the first real page lands; the next fetch
// or refresh proceeds as if the pager were empty, deduplicating against the
// seeded items.
func (p *Pager) Seed(items []Item) {
	if p.started || len(p.items) > 0 {
		return
	}
	for _, it := range items {
		if p.seen[it.ID] {
			continue
		}
		p.seen[it.ID] = true
		p.items = append(p.items, it)
	}
}

// BeginNext starts a next-page fetch. It is a no-op (ok=false) while any
// fetch is in flight or when the cursor is terminal.
func (p *Pager) BeginNext() (Request, bool) {
	if p.fetching || p.refreshing {
		return Request{}, false
	}
	if p.started && p.exhausted {
		return Request{}, false
	}
	p.fetching = true
	return Request{
		Kind:      p.kind,
		ProfileID: p.profileID,
		Cursor:    p.cursor,
		gen:       p.gen,
	}, true
}

// BeginRefresh starts a first-page refetch. Concurrent refresh requests
// collapse to the one already in flight. A refresh supersedes any pending
// next-page fetch: its response will arrive under an old generation and be
// dropped. Accumulated pages stay visible until the refresh succeeds.
func (p *Pager) BeginRefresh() (Request, bool) {
	if p.refreshing {
		return Request{}, false
	}
	p.gen++
	p.fetching = false
	p.refreshing = true
	return Request{
		Kind:      p.kind,
		ProfileID: p.profileID,
		gen:       p.gen,
		refresh:   true,
	}, true
}

// Complete applies a fetch response. Stale responses (issued before the most
// recent refresh) are ignored. A failed fetch leaves the accumulated pages
// intact and only records the error.
func (p *Pager) Complete(req Request, page Page, err error) {
	if req.gen != p.gen {
		return
	}
	if req.refresh {
		p.refreshing = false
	} else {
		p.fetching = false
	}
	if err != nil {
		p.lastErr = err
		return
	}
	p.lastErr = nil

	if req.refresh {
		p.items = p.items[:0]
		p.seen = make(map[string]bool)
	}
	for _, it := range page.Items {
		if p.seen[it.ID] {
			continue
		}
		p.seen[it.ID] = true
		p.items = append(p.items, it)
	}
	p.cursor = page.NextCursor
	p.started = true
	p.exhausted = page.NextCursor == ""
}
