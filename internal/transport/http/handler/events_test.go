package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webinfinitygen/internal/events"
)

func TestEventsStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := events.NewHub()
	h := NewEventsHandler(hub)
	h.heartbeat = 50 * time.Millisecond

	r := gin.New()
	r.GET("/events/user/:userId", h.Stream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/user/u1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Subscribers("u1") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(ctx, events.ChatEvent{Type: events.SessionRenamed, ChatID: "c1", OwnerID: "u1", Title: "New"}))
	require.NoError(t, hub.Publish(ctx, events.ChatEvent{Type: events.SessionRenamed, ChatID: "c2", OwnerID: "u2", Title: "Other"}))

	stop := time.AfterFunc(2*time.Second, cancel)
	defer stop.Stop()

	reader := bufio.NewReader(resp.Body)
	var lines []string
	sawPing, sawEvent := false, false
	for !sawPing || !sawEvent {
		line, err := reader.ReadString('\n')
		require.NoError(t, err, "stream ended before the event and a heartbeat arrived")
		line = strings.TrimRight(line, "\n")
		lines = append(lines, line)
		sawPing = sawPing || line == ": ping"
		sawEvent = sawEvent || strings.HasPrefix(line, "data: ")
	}

	assert.Contains(t, lines, "event: session.renamed")
	assert.True(t, containsPrefix(lines, `data: {"type":"session.renamed","chatId":"c1"`))
	assert.False(t, containsPrefix(lines, `data: {"type":"session.renamed","chatId":"c2"`), "other users' events are not streamed")

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers("u1") == 0 }, time.Second, 10*time.Millisecond)
}

func containsPrefix(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}
