// Package devwatch implements the watch-mode diagnostics server described
// in SPEC_FULL.md §2.2: `decodergen generate --watch` polls the resolved
// input files for changes and, when `--watch_addr` is set, broadcasts a
// small JSON status frame to every connected client over a websocket.
// Grounded on the teacher's internal/network websocket server
// (WebSocketListen's upgrade handler, WebSocketBroadcast's "snapshot the
// client map under a read lock, write-message outside the lock, drop
// clients whose write fails" shape) and cmd/sentra/commands/build.go's
// WatchCommand (a polling loop around a rebuild function).
package devwatch

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Summary is one broadcast frame: the outcome of a single rebuild.
type Summary struct {
	ISAName     string   `json:"isa_name"`
	OpcodeCount int      `json:"opcode_count"`
	Diagnostics []string `json:"diagnostics"`
	GeneratedAt string   `json:"generated_at"`
}

// client is one connected websocket peer.
type client struct {
	conn   *websocket.Conn
	closed bool
}

// Server accepts websocket connections at one address and broadcasts
// every Summary passed to Broadcast to all of them, mirroring the
// teacher's WSServer: a mutex-guarded client map, snapshot-then-write
// broadcast, and per-client closed flag rather than removing entries
// mid-broadcast.
type Server struct {
	mu        sync.RWMutex
	clients   map[string]*client
	upgrader  websocket.Upgrader
	httpSrv   *http.Server
	nextID    int
}

// NewServer constructs a Server; it does not start listening until Listen
// is called.
func NewServer() *Server {
	return &Server{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Listen starts the HTTP server handling websocket upgrades at addr,
// returning immediately (the server runs in a background goroutine), the
// same "construct then go ListenAndServe" shape as the teacher's
// WebSocketListen.
func (s *Server) Listen(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", s.handleUpgrade)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("devwatch: server error: %v", err)
		}
	}()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("watch-client-%d", s.nextID)
	s.clients[id] = &client{conn: conn}
	s.mu.Unlock()
}

// Broadcast marshals summary and writes it to every connected client,
// dropping (marking closed) any client whose write fails — the same
// tolerate-one-bad-client policy as WebSocketBroadcast.
func (s *Server) Broadcast(summary Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling watch summary: %w", err)
	}

	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	var lastErr error
	for _, c := range targets {
		if c.closed {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.closed = true
			lastErr = err
		}
	}
	return lastErr
}

// Close shuts down the HTTP server and every client connection.
func (s *Server) Close() error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.closed = true
		c.conn.Close()
	}
	s.mu.Unlock()
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}

// Poll watches the mtimes of paths on the given interval, calling rebuild
// whenever any of them changes (or on the very first tick), until stop is
// closed. Grounded on cmd/sentra/commands/build.go's WatchCommand polling
// loop, generalized from "build once" into a real change-driven rebuild.
func Poll(paths []string, interval time.Duration, stop <-chan struct{}, rebuild func()) {
	lastMod := make(map[string]time.Time, len(paths))
	check := func() bool {
		changed := false
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				continue
			}
			if prev, ok := lastMod[p]; !ok || info.ModTime().After(prev) {
				lastMod[p] = info.ModTime()
				changed = true
			}
		}
		return changed
	}

	check()
	rebuild()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if check() {
				rebuild()
			}
		}
	}
}
