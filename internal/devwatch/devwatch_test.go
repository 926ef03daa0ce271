package devwatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestServerBroadcastsSummaryToConnectedClient(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(http.HandlerFunc(s.handleUpgrade))
	defer srv.Close()
	defer s.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	want := Summary{ISAName: "test", OpcodeCount: 3, Diagnostics: []string{"d1"}, GeneratedAt: "now"}
	require.NoError(t, s.Broadcast(want))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Summary
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, want, got)
}

func TestPollRebuildsOnFirstTickAndOnChange(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/input.txt"
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	calls := 0
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		Poll([]string{path}, 10*time.Millisecond, stop, func() { calls++ })
		close(done)
	}()

	require.Eventually(t, func() bool { return calls >= 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2-longer-content-to-bump-mtime"), 0o644))

	require.Eventually(t, func() bool { return calls >= 2 }, time.Second, 5*time.Millisecond)

	close(stop)
	<-done
}
