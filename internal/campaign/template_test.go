package campaign

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-site/relay/internal/ghost"
)

func TestRender_DefaultTemplate(t *testing.T) {
	composer, err := NewComposer("")
	require.NoError(t, err)

	event := &ghost.PublishEvent{
		Title:   "Hi & Bye",
		Excerpt: "a <b> excerpt",
		HTML:    "<p>b</p>",
	}

	out := composer.Render(event, "https://example.com/signal/hi")

	// Body HTML is injected verbatim; everything else is escaped.
	assert.Contains(t, out, "<p>b</p>")
	assert.Contains(t, out, "Hi &amp; Bye")
	assert.Contains(t, out, "a &lt;b&gt; excerpt")
	assert.Contains(t, out, "https://example.com/signal/hi")
	assert.NotContains(t, out, "%%SIGNAL_")
}

func TestRender_ExcerptIsEscaped(t *testing.T) {
	composer, err := NewComposer("")
	require.NoError(t, err)

	event := &ghost.PublishEvent{
		Title:   "Hi",
		Excerpt: "<script>alert(1)</script>",
		HTML:    "<p>body</p>",
	}

	out := composer.Render(event, "https://example.com/signal/hi")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestNewComposer_TemplateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newsletter.html")
	require.NoError(t, os.WriteFile(path, []byte("<div>%%SIGNAL_BODY%%</div>"), 0o600))

	composer, err := NewComposer(path)
	require.NoError(t, err)

	out := composer.Render(&ghost.PublishEvent{HTML: "<p>x</p>"}, "")
	assert.Equal(t, "<div><p>x</p></div>", out)
}

func TestNewComposer_MissingFile(t *testing.T) {
	_, err := NewComposer("/does/not/exist.html")
	assert.Error(t, err)
}

func TestSendAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 123456789, time.UTC)

	t.Run("zero delay means no scheduling", func(t *testing.T) {
		assert.Nil(t, SendAt(now, 0))
		assert.Nil(t, SendAt(now, -5))
	})

	t.Run("delay is added and truncated to seconds", func(t *testing.T) {
		at := SendAt(now, 30)
		require.NotNil(t, at)
		want := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
		assert.True(t, at.Equal(want), "SendAt = %v, want %v", at, want)
		assert.Zero(t, at.Nanosecond())
	})
}

func TestDefaultTemplate_HasAllPlaceholders(t *testing.T) {
	for _, p := range []string{PlaceholderTitle, PlaceholderExcerpt, PlaceholderBody, PlaceholderURL} {
		if !strings.Contains(DefaultTemplate, p) {
			t.Errorf("default template missing placeholder %s", p)
		}
	}
}
