package domain

import "time"

// CandidateItem is a normalized feed entry produced by a FeedSource.
type CandidateItem struct {
	// Identity is the stable dedup key: feed GUID, else link. Empty means untracked.
	Identity    string
	Title       string
	Link        string
	PublishedAt time.Time
	Description string
	RawContent  string
}

// Tracked reports whether the item can take part in dedup bookkeeping.
func (i CandidateItem) Tracked() bool {
	return i.Identity != ""
}

// Text returns the description used for keyword matching and rendering.
func (i CandidateItem) Text() string {
	if i.Description != "" {
		return i.Description
	}
	return i.RawContent
}

// FilteredFeed is the display view of the feed after conjunctive filtering.
type FilteredFeed struct {
	Items         []CandidateItem
	LastUpdated   time.Time
	TotalItems    int
	FilteredItems int
}
