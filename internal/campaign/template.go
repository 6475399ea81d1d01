// Package campaign composes the outbound newsletter email for a
// published post.
package campaign

import (
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/signal-site/relay/internal/ghost"
)

// Placeholders recognized in campaign templates. Title, excerpt, and URL
// are HTML-escaped on substitution. The post body is injected verbatim:
// it is trusted HTML produced by the authenticated CMS.
const (
	PlaceholderTitle   = "%%SIGNAL_TITLE%%"
	PlaceholderExcerpt = "%%SIGNAL_EXCERPT%%"
	PlaceholderBody    = "%%SIGNAL_BODY%%"
	PlaceholderURL     = "%%SIGNAL_URL%%"
)

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `<html>
<body>
<h1>%%SIGNAL_TITLE%%</h1>
<p><em>%%SIGNAL_EXCERPT%%</em></p>
%%SIGNAL_BODY%%
<p><a href="%%SIGNAL_URL%%">Read on the site</a></p>
</body>
</html>`

// Composer renders campaign bodies from a template.
type Composer struct {
	template string
}

// NewComposer returns a Composer using the template file at path, or the
// built-in default template when path is empty.
func NewComposer(path string) (*Composer, error) {
	if path == "" {
		return &Composer{template: DefaultTemplate}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("campaign: read template %s: %w", path, err)
	}
	return &Composer{template: string(raw)}, nil
}

// Render substitutes the post's fields into the template.
func (c *Composer) Render(event *ghost.PublishEvent, postURL string) string {
	r := strings.NewReplacer(
		PlaceholderTitle, html.EscapeString(event.Title),
		PlaceholderExcerpt, html.EscapeString(event.Excerpt),
		PlaceholderURL, html.EscapeString(postURL),
		PlaceholderBody, event.HTML,
	)
	return r.Replace(c.template)
}

// SendAt returns the scheduled send time for a configured delay, or nil
// when the delay is zero or negative (the email service's default send
// behavior applies). The result is truncated to whole seconds since the
// email service rejects sub-second precision.
func SendAt(now time.Time, delayMinutes int) *time.Time {
	if delayMinutes <= 0 {
		return nil
	}
	at := now.Add(time.Duration(delayMinutes) * time.Minute).Truncate(time.Second)
	return &at
}
