// Package api is the network request layer: feed pages, engagement
// mutations, watch impressions, and remote configuration. All calls take a
// context and return wrapped errors; retry policy lives with the caller.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"context"

	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// userAgent identifies the client to the service.
const userAgent = "vertigo/0.1 (terminal)"

// Configuration is the remote feature configuration.
type Configuration struct {
	ForYouEnabled bool `json:"for_you_enabled"`
}

// Preferences are the server-side viewer preferences.
type Preferences struct {
	MuteOnOpen  bool      `json:"mute_on_open"`
	DefaultFeed feed.Kind `json:"default_feed"`
	HideForYou  bool      `json:"hide_for_you"`
}

// Impression is one recorded watch observation for a personalized-feed item.
type Impression struct {
	ItemID         string    `json:"item_id"`
	WatchedSeconds float64   `json:"watched_seconds"`
	Completed      bool      `json:"completed"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Client talks to the feed service. Safe for concurrent use.
type Client struct {
	base     string
	token    string
	deviceID string
	http     *http.Client
	limiter  *rate.Limiter
}

// New creates a client for the service at baseURL. token may be empty for
// anonymous browsing of the local feed.
func New(baseURL, token string) *Client {
	return &Client{
		base:     baseURL,
		token:    token,
		deviceID: uuid.NewString(),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		// The UI fires mutations on every tap; keep a polite ceiling.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// FetchPage retrieves one page of the given feed. An empty cursor requests
// the first page; profileID is only used for the profile feed.
func (c *Client) FetchPage(ctx context.Context, kind feed.Kind, profileID, cursor string) (feed.Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if kind == feed.KindProfile && profileID != "" {
		q.Set("profile_id", profileID)
	}
	var page feed.Page
	if err := c.do(ctx, http.MethodGet, "/v1/feed/"+string(kind), q, nil, &page); err != nil {
		return feed.Page{}, fmt.Errorf("fetch %s feed: %w", kind, err)
	}
	return page, nil
}

// Like records a like for the item. Fire-and-forget from the UI's
// perspective: the optimistic flag never rolls back on failure.
func (c *Client) Like(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodPost, "/v1/items/"+itemID+"/like", nil, nil, nil)
}

// Unlike removes a like.
func (c *Client) Unlike(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/items/"+itemID+"/like", nil, nil, nil)
}

// Bookmark saves the item to the viewer's bookmarks.
func (c *Client) Bookmark(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodPost, "/v1/items/"+itemID+"/bookmark", nil, nil, nil)
}

// Unbookmark removes a bookmark.
func (c *Client) Unbookmark(ctx context.Context, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/items/"+itemID+"/bookmark", nil, nil, nil)
}

// Comment is one comment on a feed item.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Likes     int64     `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentPage is one page of comments with a continuation cursor.
type CommentPage struct {
	Comments   []Comment `json:"comments"`
	NextCursor string    `json:"next_cursor"`
}

// ListComments retrieves one page of comments for the item.
func (c *Client) ListComments(ctx context.Context, itemID, cursor string) (CommentPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page CommentPage
	if err := c.do(ctx, http.MethodGet, "/v1/items/"+itemID+"/comments", q, nil, &page); err != nil {
		return CommentPage{}, fmt.Errorf("list comments: %w", err)
	}
	return page, nil
}

// PostComment posts a comment on the item.
func (c *Client) PostComment(ctx context.Context, itemID, text string) error {
	body := map[string]string{"text": text}
	return c.do(ctx, http.MethodPost, "/v1/items/"+itemID+"/comments", nil, body, nil)
}

// RecordImpression reports watch duration and completion for an item.
func (c *Client) RecordImpression(ctx context.Context, imp Impression) error {
	if err := c.do(ctx, http.MethodPost, "/v1/impressions", nil, imp, nil); err != nil {
		return fmt.Errorf("record impression: %w", err)
	}
	return nil
}

// GetConfiguration fetches the remote feature configuration.
func (c *Client) GetConfiguration(ctx context.Context) (Configuration, error) {
	var cfg Configuration
	if err := c.do(ctx, http.MethodGet, "/v1/config", nil, nil, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("get configuration: %w", err)
	}
	return cfg, nil
}

// GetPreferences fetches the viewer's server-side preferences.
func (c *Client) GetPreferences(ctx context.Context) (Preferences, error) {
	var prefs Preferences
	if err := c.do(ctx, http.MethodGet, "/v1/preferences", nil, nil, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}

// do performs one request with rate limiting, auth, and JSON decoding.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Device-ID", c.deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
