package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/digest/internal/logger"
	"github.com/deusflow/digest/internal/news"
	"github.com/deusflow/digest/internal/retry"
)

func TestFormatDigest(t *testing.T) {
	articles := []news.Article{
		{Title: "Rocket <lands>", URL: "https://example.com/a?x=1&y=2"},
		{Title: "No link"},
	}
	text := FormatDigest("Daily & Digest", "Hello.", articles, map[string]string{
		"pdf":      "out/newsletter.pdf",
		"markdown": "out/newsletter.md",
	})

	assert.True(t, strings.HasPrefix(text, "<b>Daily &amp; Digest</b>\n\nHello.\n"))
	assert.Contains(t, text, `• <a href="https://example.com/a?x=1&amp;y=2">Rocket &lt;lands&gt;</a>`)
	assert.Contains(t, text, "• No link")
	assert.Less(t, strings.Index(text, "markdown:"), strings.Index(text, "pdf:"))
}

func TestFormatDigest_CapsHeadlines(t *testing.T) {
	var articles []news.Article
	for i := 0; i < 8; i++ {
		articles = append(articles, news.Article{Title: "t"})
	}
	text := FormatDigest("D", "", articles, nil)
	assert.Equal(t, maxHeadings, strings.Count(text, "• t"))
	assert.Contains(t, text, "…and 3 more")
}

func TestSendDigest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier("TOKEN", "42", logger.Discard(), WithAPIBase(srv.URL+"/"))
	require.True(t, n.Configured())

	err := n.SendDigest(context.Background(), "Digest", "intro", []news.Article{{Title: "A"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Contains(t, got["text"], "intro")
}

func TestSendMessage_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("T", "1", logger.Discard(), WithAPIBase(srv.URL), WithRetry(retry.RetryConfig{MaxAttempts: 3}))
	require.NoError(t, n.SendMessage(context.Background(), "hi"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendMessage_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewNotifier("T", "1", logger.Discard(), WithAPIBase(srv.URL), WithRetry(retry.RetryConfig{MaxAttempts: 3}))
	err := n.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendMessage_Misconfigured(t *testing.T) {
	n := NewNotifier("", "1", logger.Discard())
	assert.False(t, n.Configured())
	assert.Error(t, n.SendMessage(context.Background(), "hi"))

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Configured())
}
