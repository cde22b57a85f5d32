package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/victorvcruz/quark/internal/logging"
)

// Server accepts inbound mesh connections.
type Server struct {
	mesh       *Mesh
	mux        *http.ServeMux
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

func NewServer(mesh *Mesh) *Server {
	server := &Server{
		mesh: mesh,
		mux:  http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are other daemons, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	server.setupRoutes()
	return server
}

func (ss *Server) setupRoutes() {
	ss.mux.HandleFunc(syncPath, ss.handleSync)
	ss.mux.HandleFunc("/health", ss.handleHealth)
}

func (ss *Server) Handler() http.Handler {
	return logging.RequestLogger(ss.mux)
}

func (ss *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	remoteID := r.Header.Get(nodeHeader)
	if remoteID != "" && remoteID == ss.mesh.nodeID {
		http.Error(w, "connection to self", http.StatusConflict)
		return
	}

	header := http.Header{}
	header.Set(nodeHeader, ss.mesh.nodeID)
	conn, err := ss.upgrader.Upgrade(w, r, header)
	if err != nil {
		logging.Warn("websocket upgrade failed", "event", "sync", "error", err)
		return
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ss.mesh.addPeer(newPeer(conn, r.RemoteAddr, host, directionIn, remoteID))
}

func (ss *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"status": "ok",
		"node":   ss.mesh.nodeID,
		"peers":  ss.mesh.PeerCount(),
	})
}

// Start listens on addr and serves in the background.
func (ss *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ss.httpServer = &http.Server{
		Handler:           ss.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := ss.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("mesh server error", "event", "sync", "error", err)
		}
	}()

	logging.Info("mesh server listening", "event", "sync", "addr", listener.Addr().String())
	return nil
}

func (ss *Server) Shutdown(ctx context.Context) error {
	if ss.httpServer == nil {
		return nil
	}
	return ss.httpServer.Shutdown(ctx)
}
