// Package ghost normalizes Ghost CMS webhook payloads.
package ghost

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// StatusPublished is the post status that triggers a relay.
const StatusPublished = "published"

// ErrMalformedPayload indicates the webhook body was not valid JSON.
var ErrMalformedPayload = errors.New("ghost: malformed webhook payload")

// PublishEvent is the normalized subset of a Ghost post.published webhook.
type PublishEvent struct {
	Title       string
	Slug        string
	Excerpt     string
	HTML        string
	Status      string
	PublishedAt time.Time
	// PostID is the Ghost post id, used as the dedup key when present.
	PostID string
}

type webhookPayload struct {
	Post struct {
		Current *postPayload `json:"current"`
	} `json:"post"`
}

type postPayload struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt"`
	HTML        string    `json:"html"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"published_at"`
}

// ParsePublishEvent parses rawBody and returns the normalized publish
// event. It returns ErrMalformedPayload for invalid JSON and (nil, nil)
// when the payload is valid but not a publish event: drafts, unpublish
// notifications, and unrelated webhook shapes are deliberate no-ops.
func ParsePublishEvent(rawBody []byte) (*PublishEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, ErrMalformedPayload
	}

	post := payload.Post.Current
	if post == nil || post.Status != StatusPublished {
		return nil, nil
	}

	title := strings.TrimSpace(post.Title)
	if title == "" {
		title = "New post"
	}

	return &PublishEvent{
		Title:       title,
		Slug:        post.Slug,
		Excerpt:     post.Excerpt,
		HTML:        post.HTML,
		Status:      post.Status,
		PublishedAt: post.PublishedAt,
		PostID:      post.ID,
	}, nil
}

// URL returns the public post URL under the site base URL, at
// /signal/{slug}.
func (e *PublishEvent) URL(siteBaseURL string) string {
	return strings.TrimRight(siteBaseURL, "/") + "/signal/" + e.Slug
}

// DedupKey returns a stable identifier for duplicate-delivery detection:
// the Ghost post id when present, otherwise slug plus publish time.
func (e *PublishEvent) DedupKey() string {
	if e.PostID != "" {
		return "ghost:" + e.PostID
	}
	return "ghost:" + e.Slug + "@" + e.PublishedAt.UTC().Format(time.RFC3339)
}
