package domain

import "time"

// DedupRecord marks an identity as already evaluated.
type DedupRecord struct {
	Identity    string
	Title       string
	FirstSeenAt time.Time
}

// NotificationRecord is persisted once per item after a successful dispatch.
type NotificationRecord struct {
	ID                 int64
	Identity           string
	Title              string
	Link               string
	Description        string
	PublishedAt        time.Time
	MatchedFilterNames []string
	SentAt             time.Time
}

// NotificationQuery pages through the notification log.
type NotificationQuery struct {
	Limit  int
	Offset int
	// Search is matched case-insensitively against title, description and filter names.
	Search string
}
