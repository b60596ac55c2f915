package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/otj-helper/internal/events"
)

// openStream connects to the event stream and waits for the subscription.
func openStream(ctx context.Context, t *testing.T, env *testEnv) (*http.Response, *bufio.Reader) {
	t.Helper()
	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/stream", nil)
	require.NoError(t, err)
	req.AddCookie(env.cookie)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	require.Eventually(t, func() bool {
		return env.broker.Subscribers(env.user.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	r := bufio.NewReader(resp.Body)
	hello := readEvent(t, r)
	require.True(t, strings.HasPrefix(hello, "event: connected\ndata: "), hello)

	var connected ConnectedEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(hello), "event: connected\ndata: ")), &connected))
	assert.NotEmpty(t, connected.SubscriptionID)
	return resp, r
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			return strings.Join(lines, "")
		}
		lines = append(lines, line)
	}
}

func TestEventStream_DeliversUserEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, r := openStream(ctx, t, env)

	assert.Equal(t, 0, env.broker.Publish(env.user.ID+1, events.ActivityCreated, map[string]int{"id": 7}),
		"other users' events are not delivered")
	require.Equal(t, 1, env.broker.Publish(env.user.ID, events.ActivityCreated, map[string]int{"id": 7}))

	assert.Equal(t, "event: activity_created\ndata: {\"id\":7}\n", readEvent(t, r))

	cancel()
	require.Eventually(t, func() bool {
		return env.broker.Subscribers(env.user.ID) == 0
	}, 2*time.Second, 10*time.Millisecond, "disconnect unsubscribes")
}

func TestEventStream_Keepalive(t *testing.T) {
	env := newTestEnv(t)
	env.srv.keepalive = 20 * time.Millisecond

	_, r := openStream(context.Background(), t, env)
	assert.Equal(t, ": keepalive\n", readEvent(t, r))
}

func TestEventStream_ClosesOnShutdown(t *testing.T) {
	env := newTestEnv(t)

	_, r := openStream(context.Background(), t, env)
	close(env.srv.closing)

	require.Eventually(t, func() bool {
		return env.broker.Subscribers(env.user.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
	_, err := r.ReadString('\n')
	assert.Error(t, err, "stream ends when the server shuts down")
}
