// Package bridge is the local request/response surface for external tools:
// an HTTP endpoint bound to loopback, its client, and an MCP adapter that
// exposes the client as tools.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/victorvcruz/quark/internal/logging"
)

const DefaultAddr = "127.0.0.1:14314"

const maxBodyBytes = 16 << 20

// Clipboard is the daemon side of the bridge. Push is a guarded write that
// is also broadcast; no transformation is applied.
type Clipboard interface {
	ReadText(ctx context.Context) (string, error)
	Push(ctx context.Context, text string) error
}

type Status struct {
	NodeID string `json:"nodeId"`
	Peers  int    `json:"peers"`
	Guard  string `json:"guard"`
}

type StatusFunc func(ctx context.Context) (Status, error)

type clipboardBody struct {
	Text *string `json:"text"`
}

type Server struct {
	clip       Clipboard
	status     StatusFunc
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(clip Clipboard, status StatusFunc) *Server {
	s := &Server{
		clip:   clip,
		status: status,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/clipboard", s.handleClipboard)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

func (s *Server) Handler() http.Handler {
	return logging.RequestLogger(loopbackOnly(s.mux))
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("bridge server error", "error", err)
		}
	}()

	logging.Info("bridge listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if parsed := net.ParseIP(host); parsed == nil || !parsed.IsLoopback() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleClipboard(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		text, err := s.clip.ReadText(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": text})

	case http.MethodPost:
		var body clipboardBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if body.Text == nil {
			http.Error(w, "text is required", http.StatusBadRequest)
			return
		}
		if *body.Text == "" {
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
		if err := s.clip.Push(r.Context(), *body.Text); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.status == nil {
		http.NotFound(w, r)
		return
	}
	status, err := s.status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}
