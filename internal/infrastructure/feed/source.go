package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/ports"
	"FeedWatcher/internal/textutil"
)

const (
	userAgent    = "FeedWatcher/1.0"
	maxFeedBytes = 32 << 20
)

// Source fetches an RSS/Atom feed over HTTP and normalizes its entries.
type Source struct {
	url    string
	client *http.Client
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ ports.FeedSource = (*Source)(nil)

// NewSource wires an HTTP client; a nil client gets the given timeout (30s when zero).
func NewSource(feedURL string, client *http.Client, timeout time.Duration, log *slog.Logger) *Source {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Source{
		url:    feedURL,
		client: client,
		parser: gofeed.NewParser(),
		logger: log,
	}
}

// Fetch downloads and parses the feed, preserving entry order.
func (s *Source) Fetch(ctx context.Context) ([]domain.CandidateItem, error) {
	if s.url == "" {
		return nil, fmt.Errorf("%w: feed url is not configured", domain.ErrFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request feed: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: feed returned %s", domain.ErrFetch, resp.Status)
	}

	// The body is read in full first so that a timeout or a dropped
	// connection mid-body is reported as a fetch failure, not a parse one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read feed: %v", domain.ErrFetch, err)
	}

	parsed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	items := make([]domain.CandidateItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		items = append(items, normalize(entry))
	}

	s.debug("feed fetched", "title", parsed.Title, "items", len(items))
	return items, nil
}

func normalize(entry *gofeed.Item) domain.CandidateItem {
	raw := entry.Content
	if raw == "" {
		raw = entry.Description
	}

	description := textutil.StripHTML(entry.Description)
	if description == "" {
		description = textutil.StripHTML(entry.Content)
	}

	return domain.CandidateItem{
		Identity:    identity(entry),
		Title:       strings.TrimSpace(entry.Title),
		Link:        strings.TrimSpace(entry.Link),
		PublishedAt: publishedAt(entry),
		Description: description,
		RawContent:  raw,
	}
}

// identity prefers the feed GUID, then the link; empty means untracked.
func identity(entry *gofeed.Item) string {
	if id := strings.TrimSpace(entry.GUID); id != "" {
		return id
	}
	return strings.TrimSpace(entry.Link)
}

func publishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func (s *Source) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
