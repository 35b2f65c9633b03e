// Package feed defines the feed data model and the cursor pagination state
// shared by every feed variant.
package feed

import "time"

// Kind identifies which feed a pager is backed by.
type Kind string

const (
	KindForYou    Kind = "foryou"
	KindFollowing Kind = "following"
	KindLocal     Kind = "local"
	KindProfile   Kind = "profile"
)

// Kinds lists the selectable feed kinds in display order.
var Kinds = []Kind{KindForYou, KindFollowing, KindLocal}

// Label returns the human-readable feed name.
func (k Kind) Label() string {
	switch k {
	case KindForYou:
		return "For You"
	case KindFollowing:
		return "Following"
	case KindLocal:
		return "Local"
	case KindProfile:
		return "Profile"
	}
	return string(k)
}

// Author is the reference to the account that posted an item.
type Author struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url"`
}

// Media describes the playable asset of an item.
type Media struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
	AltText         string `json:"alt_text,omitempty"`
	Sensitive       bool   `json:"sensitive"`
}

// Caption is the item text with embedded references.
type Caption struct {
	Text     string   `json:"text"`
	Mentions []string `json:"mentions,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// Item is a single feed entry. The UI treats everything here as immutable
// except Liked/Bookmarked, which local optimistic state shadows.
type Item struct {
	ID     string `json:"id"`
	Author Author `json:"author"`
	Media  Media  `json:"media"`

	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
	Bookmarks int64 `json:"bookmarks"`
	Shares    int64 `json:"shares"`

	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`

	Caption     *Caption  `json:"caption,omitempty"`
	AIGenerated bool      `json:"ai_generated,omitempty"`
	Sponsored   bool      `json:"sponsored,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Page is one fetch response. An empty NextCursor marks the end of the feed.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
