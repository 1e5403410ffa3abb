// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"doppler/internal/analysis"
	applog "doppler/internal/log"

	"github.com/gorilla/websocket"
)

// ResultsPath is where WebSocketTransport accepts clients.
const ResultsPath = "/results"

const (
	broadcastQueueSize = 256
	writeTimeout       = time.Second
)

// WebSocketTransport implements the Transport interface by broadcasting
// each result as JSON to every connected WebSocket client.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan analysis.Result
	server    *http.Server
	logger    *applog.Logger

	doneChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64
}

// NewWebSocketTransport creates a new WebSocketTransport instance and starts
// its broadcast loop. Call ListenAndServe to accept clients on addr, or
// mount Handler on an existing server.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan analysis.Result, broadcastQueueSize),
		logger:    applog.New("WebSocketTransport"),
		doneChan:  make(chan struct{}),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving ResultsPath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ResultsPath, wst.handleWebSocket)
	return mux
}

// ListenAndServe starts the HTTP server in a goroutine.
func (wst *WebSocketTransport) ListenAndServe() {
	wst.server = &http.Server{
		Addr:              wst.addr,
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		wst.logger.Infof("serving results on ws://%s%s", wst.addr, ResultsPath)
		if err := wst.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.logger.Errorf("server error: %v", err)
		}
	}()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.logger.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.logger.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients never send; a read error means they left.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.clientsMu.Lock()
		if wst.clients[conn] {
			delete(wst.clients, conn)
			conn.Close()
		}
		total := len(wst.clients)
		wst.clientsMu.Unlock()
		wst.logger.Infof("client disconnected, total: %d", total)
	}()
}

// handleBroadcasts sends results to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case r := <-wst.broadcast:
			wst.writeAll(r)
		case <-wst.doneChan:
			return
		}
	}
}

func (wst *WebSocketTransport) writeAll(r analysis.Result) {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	for client := range wst.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteJSON(r); err != nil {
			wst.logger.Warnf("error sending to client %s: %v", client.RemoteAddr(), err)
			client.Close()
			delete(wst.clients, client)
		}
	}
}

// Send queues r for broadcast. A full queue drops r.
func (wst *WebSocketTransport) Send(r analysis.Result) error {
	select {
	case <-wst.doneChan:
		return errors.New("websocket transport closed")
	default:
	}

	select {
	case wst.broadcast <- r:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns how many results were discarded because the queue was
// full.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

// Close stops broadcasting, disconnects every client and shuts the server
// down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.logger.Debugf("closing")
		close(wst.doneChan)
		wst.wg.Wait()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = wst.server.Shutdown(ctx)
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
