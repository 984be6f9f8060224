package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/ports"
	"FeedWatcher/internal/textutil"
)

const (
	// MaxEmbeds is the per-message embed cap of the Discord webhook API.
	MaxEmbeds = 10
	// BrandColor is Discord blurple.
	BrandColor = 0x5865F2

	descriptionLimit = 300
	titleLimit       = 256
	fieldValueLimit  = 1024
	matchedFieldName = "Matched Filters"
)

// Message is the webhook request body.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds"`
}

// Embed renders one matched item.
type Embed struct {
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	Color       int     `json:"color"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
	Timestamp   string  `json:"timestamp"`
}

// Field is a name/value pair shown under an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Notifier posts batched matches to a Discord webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the webhook; a nil client gets the given timeout (30s when zero).
func NewNotifier(webhookURL string, client *http.Client, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     client,
		now:        time.Now,
	}
}

// Dispatch sends one message for the batch. It never retries.
func (n *Notifier) Dispatch(ctx context.Context, matches []domain.Match) error {
	if n.webhookURL == "" || n.client == nil {
		return fmt.Errorf("%w: discord webhook is not configured", domain.ErrDispatch)
	}
	if len(matches) == 0 {
		return nil
	}

	body, err := json.Marshal(BuildMessage(matches, n.now()))
	if err != nil {
		return fmt.Errorf("%w: marshal message: %v", domain.ErrDispatch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: new request: %v", domain.ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %v", domain.ErrDispatch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: discord error %s: %s", domain.ErrDispatch, resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}

// BuildMessage renders the first MaxEmbeds matches; the content line reports the full count.
func BuildMessage(matches []domain.Match, now time.Time) Message {
	shown := matches
	if len(shown) > MaxEmbeds {
		shown = shown[:MaxEmbeds]
	}

	embeds := make([]Embed, 0, len(shown))
	for _, m := range shown {
		embeds = append(embeds, buildEmbed(m, now))
	}

	return Message{
		Content: summaryLine(len(matches)),
		Embeds:  embeds,
	}
}

func summaryLine(total int) string {
	switch {
	case total > MaxEmbeds:
		return fmt.Sprintf("**%d new items matched your filters** (showing first %d)", total, MaxEmbeds)
	case total == 1:
		return "**1 new item matched your filters**"
	default:
		return fmt.Sprintf("**%d new items matched your filters**", total)
	}
}

func buildEmbed(m domain.Match, now time.Time) Embed {
	description := textutil.StripHTML(m.Item.Text())

	timestamp := m.Item.PublishedAt
	if timestamp.IsZero() {
		timestamp = now
	}

	return Embed{
		Title:       textutil.Truncate(m.Item.Title, titleLimit),
		URL:         m.Item.Link,
		Color:       BrandColor,
		Description: textutil.Truncate(description, descriptionLimit),
		Fields: []Field{{
			Name:   matchedFieldName,
			Value:  textutil.Truncate(strings.Join(m.FilterNames(), ", "), fieldValueLimit),
			Inline: false,
		}},
		Timestamp: timestamp.UTC().Format(time.RFC3339),
	}
}
