// Package server maneja las conexiones WebSocket y el encolamiento de trabajos.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/adcondev/pdf-daemon/internal/metrics"
	"github.com/adcondev/pdf-daemon/internal/printer"
)

// ToolInspector reports whether SumatraPDF is installed where the service expects it.
type ToolInspector interface {
	Summary(forceRefresh bool) printer.ToolSummary
}

// GateReporter reports how many print slots are in use.
type GateReporter interface {
	GateStatus() printer.GateStatus
}

// Config holds server configuration
type Config struct {
	QueueSize      int
	AllowedOrigins []string
	// JobsPerMinute limits print submissions per client address.
	JobsPerMinute int
	// AuthToken, when set, must accompany every print message.
	AuthToken string
}

// PrintJob represents a queued print request
type PrintJob struct {
	ID         string          `json:"id"`
	ClientConn *websocket.Conn `json:"-"`
	Request    printer.Request `json:"datos"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Message represents incoming WebSocket message
type Message struct {
	Tipo  string          `json:"tipo"`
	ID    string          `json:"id,omitempty"`
	Token string          `json:"token,omitempty"`
	Datos json.RawMessage `json:"datos,omitempty"`
}

// Response represents outgoing WebSocket message
type Response struct {
	Tipo     string               `json:"tipo"`
	ID       string               `json:"id,omitempty"`
	Status   string               `json:"status,omitempty"`
	Mensaje  string               `json:"mensaje,omitempty"`
	Current  int                  `json:"current,omitempty"`
	Capacity int                  `json:"capacity,omitempty"`
	Gate     *printer.GateStatus  `json:"gate,omitempty"`
	Tool     *printer.ToolSummary `json:"tool,omitempty"`
}

// Server manages WebSocket connections and job queue
type Server struct {
	clients        *ClientRegistry
	jobQueue       chan *PrintJob
	queueSize      int
	allowedOrigins []string
	authToken      string
	limiter        *JobRateLimiter
	shutdownOnce   sync.Once
	shutdownChan   chan struct{}
	tools          ToolInspector
	gate           GateReporter
}

// NewServer creates a new WebSocket server
func NewServer(cfg Config, tools ToolInspector, gate GateReporter) *Server {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.JobsPerMinute <= 0 {
		cfg.JobsPerMinute = 60
	}

	return &Server{
		clients:        NewClientRegistry(),
		jobQueue:       make(chan *PrintJob, cfg.QueueSize),
		queueSize:      cfg.QueueSize,
		allowedOrigins: cfg.AllowedOrigins,
		authToken:      cfg.AuthToken,
		limiter:        NewJobRateLimiter(cfg.JobsPerMinute),
		shutdownChan:   make(chan struct{}),
		tools:          tools,
		gate:           gate,
	}
}

// QueueStatus returns current and max queue size
func (s *Server) QueueStatus() (current, capacity int) {
	return len(s.jobQueue), cap(s.jobQueue)
}

// JobQueue returns the job queue channel (for worker consumption)
func (s *Server) JobQueue() <-chan *PrintJob {
	return s.jobQueue
}

// ClientCount returns the number of connected WebSocket clients
func (s *Server) ClientCount() int {
	return s.clients.Count()
}

// HandleWebSocket handles WebSocket connections
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		log.Printf("[WS] ❌ Error accepting client: %v", err)
		return
	}

	host := clientKey(r.RemoteAddr)
	s.clients.Add(conn, host)
	log.Printf("[+] Cliente conectado (total: %d) desde %s", s.clients.Count(), host)

	ctx := r.Context()
	welcome := Response{
		Tipo:    "info",
		Status:  "connected",
		Mensaje: "✅ Servidor respondiendo desde PDF Servicio",
	}
	_ = wsjson.Write(ctx, conn, welcome)

	s.handleMessages(ctx, conn, host)

	info, _ := s.clients.Remove(conn)
	_ = conn.Close(websocket.StatusNormalClosure, "disconnected")
	log.Printf("[-] Cliente desconectado %s tras %v, %d trabajos (restantes: %d)",
		host, time.Since(info.ConnectedAt).Round(time.Second), info.JobsQueued, s.clients.Count())
}

// handleMessages processes incoming messages from a client
func (s *Server) handleMessages(ctx context.Context, conn *websocket.Conn, client string) {
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}

		var msg Message
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			// Normal closure or context cancelled
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				ctx.Err() != nil {
				return
			}
			log.Printf("[WS] ⚠️ Error reading message: %v", err)
			return
		}

		s.routeMessage(ctx, conn, client, &msg)
	}
}

// routeMessage routes message to appropriate handler
func (s *Server) routeMessage(ctx context.Context, conn *websocket.Conn, client string, msg *Message) {
	switch msg.Tipo {
	case "print":
		s.handlePrint(ctx, conn, client, msg)
	case "status":
		s.handleStatus(ctx, conn)
	case "ping":
		s.handlePing(ctx, conn, msg)
	case "tool":
		s.handleTool(ctx, conn)
	default:
		log.Printf("[WS] ⚠️ Unknown message type: %s", msg.Tipo)
		s.sendError(ctx, conn, msg.ID, "Unknown message type: "+msg.Tipo)
	}
}

// handlePrint validates and enqueues a print request
func (s *Server) handlePrint(ctx context.Context, conn *websocket.Conn, client string, msg *Message) {
	jobID := msg.ID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	if s.authToken != "" && msg.Token != s.authToken {
		log.Printf("[AUDIT] PRINT_REJECTED | job=%s | client=%s | reason=token", jobID, client)
		s.sendError(ctx, conn, jobID, "Invalid or missing token")
		return
	}

	if !s.limiter.Allow(client) {
		metrics.RejectJob("rate_limited")
		log.Printf("[QUEUE] 🚫 Rate limit exceeded for %s, rejecting job: %s", client, jobID)
		s.sendError(ctx, conn, jobID, "Too many print jobs, please slow down")
		return
	}

	req, err := parseRequest(msg.Datos)
	if err != nil {
		log.Printf("[QUEUE] ❌ Job %s rejected: %v", jobID, err)
		s.sendError(ctx, conn, jobID, err.Error())
		return
	}

	job := &PrintJob{
		ID:         jobID,
		ClientConn: conn,
		Request:    req,
		ReceivedAt: time.Now(),
	}

	// Try to enqueue (non-blocking)
	select {
	case s.jobQueue <- job:
		s.clients.RecordJob(conn)
		current, capacity := s.QueueStatus()
		log.Printf("[>] Job enviado: %s (queue: %d/%d)", jobID, current, capacity)

		_ = wsjson.Write(ctx, conn, Response{
			Tipo:     "ack",
			ID:       jobID,
			Status:   "queued",
			Current:  current,
			Capacity: capacity,
			Mensaje:  "Job queued for printing",
		})

	default:
		metrics.RejectJob("queue_full")
		current, capacity := s.QueueStatus()
		log.Printf("[QUEUE] 🚫 Queue full, rejecting job: %s (%d/%d)", jobID, current, capacity)
		s.sendError(ctx, conn, jobID, "Queue full, please retry in a few seconds")
	}
}

// parseRequest decodes and validates the datos field of a print message
func parseRequest(raw json.RawMessage) (printer.Request, error) {
	var req printer.Request
	if len(raw) == 0 {
		return req, fmt.Errorf("field 'datos' is required for type 'print'")
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid 'datos': %w", err)
	}
	if req.File == "" {
		return req, fmt.Errorf("field 'datos.file' is required")
	}
	if req.TimeoutSeconds < 0 {
		return req, fmt.Errorf("field 'datos.timeout_seconds' must be non-negative")
	}
	return req, nil
}

// handleStatus sends queue and print slot status
func (s *Server) handleStatus(ctx context.Context, conn *websocket.Conn) {
	current, capacity := s.QueueStatus()

	response := Response{
		Tipo:     "status",
		Status:   "ok",
		Current:  current,
		Capacity: capacity,
		Mensaje:  formatStatus(current, capacity),
	}
	if s.gate != nil {
		gate := s.gate.GateStatus()
		response.Gate = &gate
	}
	log.Printf("[~] Queue status: %s", response.Mensaje)
	_ = wsjson.Write(ctx, conn, response)
}

// handlePing responds to ping
func (s *Server) handlePing(ctx context.Context, conn *websocket.Conn, msg *Message) {
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:   "pong",
		ID:     msg.ID,
		Status: "ok",
	})
}

// handleTool reports the SumatraPDF installation
func (s *Server) handleTool(ctx context.Context, conn *websocket.Conn) {
	if s.tools == nil {
		s.sendError(ctx, conn, "", "Tool discovery not available")
		return
	}
	summary := s.tools.Summary(true)
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:   "tool",
		Status: summary.Status,
		Tool:   &summary,
	})
}

// sendError sends error response to client
func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, id, mensaje string) {
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:    "error",
		ID:      id,
		Status:  "error",
		Mensaje: mensaje,
	})
}

// NotifyClient sends a result back to a specific client
func (s *Server) NotifyClient(conn *websocket.Conn, response Response) error {
	if conn == nil {
		return nil
	}
	if !s.clients.Contains(conn) {
		return fmt.Errorf("client for job %s already disconnected", response.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return wsjson.Write(ctx, conn, response)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)

		log.Printf("[WS] 🛑 Shutting down, disconnecting %d clients", s.clients.Count())

		s.clients.ForEach(func(conn *websocket.Conn) {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		})
	})
}

func formatStatus(current, capacity int) string {
	return "Queue: " + strconv.Itoa(current) + "/" + strconv.Itoa(capacity)
}

// clientKey strips the ephemeral port so limits apply per host
func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
