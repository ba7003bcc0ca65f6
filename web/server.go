package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/pastemd/config"
	"markestedt/pastemd/storage"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server only listens on loopback
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// History is the part of the paste store the dashboard reads.
type History interface {
	GetPastes(limit, offset int) ([]storage.Paste, error)
	GetPasteCount() (int, error)
	DeletePaste(id int64) error
	GetOverallStats(now time.Time, days int) (*storage.OverallStats, error)
	GetDailyStats(now time.Time, days int) ([]storage.DailyStats, error)
	GetTargetStats(now time.Time, days int) ([]storage.TargetStats, error)
}

// Server serves the local dashboard: a JSON API over the paste history and a
// WebSocket feed of new outcomes.
type Server struct {
	db    History
	store *config.Store
	port  int
	hub   *Hub
	now   func() time.Time

	mu     sync.RWMutex
	status string
}

// NewServer creates a new web server. db may be nil when history is disabled.
func NewServer(db History, store *config.Store, port int) *Server {
	return &Server{
		db:     db,
		store:  store,
		port:   port,
		hub:    NewHub(),
		now:    time.Now,
		status: "idle",
	}
}

// URL returns the dashboard address
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Handler returns the routes of the dashboard
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/config/reload", s.handleReload)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.handleHistory)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// Start serves on the loopback interface until ctx is done
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", fmt.Sprint(s.port)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting web server", "port", s.port, "url", s.URL())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Status returns the last status broadcast
func (s *Server) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// BroadcastStatus records status and pushes it to all connected clients
func (s *Server) BroadcastStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	s.hub.BroadcastMessage(Message{
		Type: MessageTypeStatus,
		Data: StatusMessage{Status: status},
	})
}

// BroadcastPaste pushes a recorded outcome with its rendered message
func (s *Server) BroadcastPaste(p *storage.Paste, message string) {
	s.hub.BroadcastMessage(Message{
		Type: MessageTypePaste,
		Data: PasteMessage{
			ID:          p.ID,
			ContentKind: p.ContentKind,
			Target:      p.Target,
			Succeeded:   p.Succeeded,
			Message:     message,
			Timestamp:   p.Timestamp.UTC().Format(time.RFC3339),
		},
	})
}

// handleWebSocket registers the connection and greets it with the current status
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	s.hub.register(client)

	hello, _ := json.Marshal(Message{Type: MessageTypeStatus, Data: StatusMessage{Status: s.Status()}})
	client.send <- hello

	go client.writePump()
	go client.readPump()
}
