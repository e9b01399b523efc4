package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaunagostinho/nmeatap/internal/gps"
)

// Server streams position fixes to WebSocket clients and serves the latest
// fix, the config and metrics over HTTP.
type Server struct {
	cfg *Config

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	lastMu sync.RWMutex
	last   *Frame
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to WebSocket clients and /api/fix.
type Frame struct {
	Fix   gps.Fix `json:"fix"`
	Stamp int64   `json:"stamp"` // Unix ms when the fix was received
}

// New creates a new Server.
func New(cfg *Config) *Server {
	return &Server{
		cfg:     cfg,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWS)

	mux.HandleFunc("/api/fix", s.handleFix)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		s.closeClients()
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// PublishFix records f as the latest fix and queues it for every client.
// It never blocks on a client: slow clients miss frames.
func (s *Server) PublishFix(f gps.Fix) error {
	frame := &Frame{Fix: f, Stamp: time.Now().UnixMilli()}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.lastMu.Lock()
	s.last = frame
	s.lastMu.Unlock()

	s.broadcast(data)
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	// Send the latest fix so new clients don't wait for the next one
	s.lastMu.RLock()
	if s.last != nil {
		if data, err := json.Marshal(s.last); err == nil {
			client.send <- data
		}
	}
	s.lastMu.RUnlock()

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", n)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (detects disconnects)
	go func() {
		defer s.removeClient(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) removeClient(client *wsClient) {
	s.clientsMu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, client)
	close(client.send)
	n := len(s.clients)
	s.clientsMu.Unlock()
	log.Printf("[ws] client disconnected (%d total)", n)
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.lastMu.RLock()
	last := s.last
	s.lastMu.RUnlock()
	if last == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(last)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	data, err := s.cfg.ToJSON()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) broadcast(data []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
