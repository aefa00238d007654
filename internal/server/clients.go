package server

import (
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ClientInfo describes a connected WebSocket client
type ClientInfo struct {
	Host        string
	ConnectedAt time.Time
	JobsQueued  int
}

// ClientRegistry tracks connected clients so results reach only live connections
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*ClientInfo
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[*websocket.Conn]*ClientInfo)}
}

// Add registers conn for host
func (r *ClientRegistry) Add(conn *websocket.Conn, host string) {
	r.mu.Lock()
	r.clients[conn] = &ClientInfo{Host: host, ConnectedAt: time.Now()}
	r.mu.Unlock()
}

// Remove unregisters conn and returns what was known about it
func (r *ClientRegistry) Remove(conn *websocket.Conn) (ClientInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.clients[conn]
	if !ok {
		return ClientInfo{}, false
	}
	delete(r.clients, conn)
	return *info, true
}

// RecordJob counts a job queued by conn
func (r *ClientRegistry) RecordJob(conn *websocket.Conn) {
	r.mu.Lock()
	if info, ok := r.clients[conn]; ok {
		info.JobsQueued++
	}
	r.mu.Unlock()
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Contains reports whether conn is still connected
func (r *ClientRegistry) Contains(conn *websocket.Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[conn]
	return ok
}

// ForEach calls fn for every client registered at the time of the call.
// fn runs without the registry lock held, so it may block or call Remove.
func (r *ClientRegistry) ForEach(fn func(*websocket.Conn)) {
	r.mu.RLock()
	snapshot := make([]*websocket.Conn, 0, len(r.clients))
	for conn := range r.clients {
		snapshot = append(snapshot, conn)
	}
	r.mu.RUnlock()

	for _, conn := range snapshot {
		fn(conn)
	}
}
