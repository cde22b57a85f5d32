// Package p2p is the mesh sync coordinator: it discovers other nodes on the
// local network, keeps websocket connections to them, broadcasts local
// clipboard changes and hands remote ones to the receive callback.
package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/zeebo/blake3"

	"github.com/victorvcruz/quark/internal/logging"
	"github.com/victorvcruz/quark/internal/network/ip"
	syncTypes "github.com/victorvcruz/quark/internal/sync"
)

const (
	DefaultPort         = 41235
	DefaultDedupeWindow = time.Second

	nodeHeader      = "X-Quark-Node"
	syncPath        = "/sync"
	cleanupInterval = time.Minute
	maxSeenEntries  = 1000
	keepSeenEntries = 100
)

// ErrSelfConnection is returned when a dial reaches this node.
var ErrSelfConnection = errors.New("connection to self")

type Config struct {
	NodeID       string
	Port         int
	Discovery    Discovery
	DedupeWindow time.Duration
	Clock        clock.Clock
	// IsLocal recognizes this host's addresses; defaults to ip.IsLocal.
	IsLocal func(host string) bool
}

type Mesh struct {
	nodeID       string
	port         int
	discovery    Discovery
	dedupeWindow time.Duration
	clock        clock.Clock
	isLocal      func(string) bool
	server       *Server
	dialer       *websocket.Dialer

	peers      map[string]*Peer
	dialing    map[string]time.Time
	peersMutex sync.RWMutex

	seen      map[[32]byte]time.Time
	seenMutex sync.Mutex

	onReceive func(syncTypes.Payload)

	running     bool
	runMutex    sync.Mutex
	cleanupStop chan struct{}
}

func NewMesh(cfg Config) *Mesh {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = DefaultDedupeWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.IsLocal == nil {
		cfg.IsLocal = ip.IsLocal
	}

	m := &Mesh{
		nodeID:       cfg.NodeID,
		port:         cfg.Port,
		discovery:    cfg.Discovery,
		dedupeWindow: cfg.DedupeWindow,
		clock:        cfg.Clock,
		isLocal:      cfg.IsLocal,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		peers:   make(map[string]*Peer),
		dialing: make(map[string]time.Time),
		seen:    make(map[[32]byte]time.Time),
	}
	m.server = NewServer(m)
	return m
}

func (m *Mesh) NodeID() string {
	return m.nodeID
}

// SetOnReceive sets the callback for remote clipboard changes. It must be
// called before Start.
func (m *Mesh) SetOnReceive(callback func(syncTypes.Payload)) {
	m.onReceive = callback
}

// Handler serves the mesh transport endpoints.
func (m *Mesh) Handler() http.Handler {
	return m.server.Handler()
}

func (m *Mesh) Start(ctx context.Context) error {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()
	if m.running {
		return fmt.Errorf("mesh already running")
	}

	if err := m.server.Start(fmt.Sprintf(":%d", m.port)); err != nil {
		return fmt.Errorf("failed to start mesh server: %w", err)
	}

	if m.discovery != nil {
		found := func(host string) { m.onPeerFound(ctx, host) }
		if err := m.discovery.Start(ctx, found); err != nil {
			m.server.Shutdown(context.Background()) //nolint:errcheck
			return fmt.Errorf("failed to start peer discovery: %w", err)
		}
	}

	m.running = true
	m.cleanupStop = make(chan struct{})
	go m.startSeenCleanup(m.cleanupStop)

	logging.Info("mesh started", "event", "sync", "node", m.nodeID, "port", m.port)
	return nil
}

func (m *Mesh) Stop() {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()
	if !m.running {
		return
	}
	m.running = false

	if m.discovery != nil {
		m.discovery.Stop()
	}
	close(m.cleanupStop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		logging.Warn("mesh server shutdown", "event", "sync", "error", err)
	}

	for _, p := range m.snapshotPeers() {
		p.Close()
	}
	logging.Info("mesh stopped", "event", "sync")
}

// Broadcast sends a clipboard change to every open peer. A peer that cannot
// take the message is dropped; the others are unaffected.
func (m *Mesh) Broadcast(text, html string) error {
	data, err := json.Marshal(syncTypes.NewSyncMessage(m.nodeID, text, html))
	if err != nil {
		return fmt.Errorf("failed to marshal sync message: %w", err)
	}

	peers := m.snapshotPeers()
	if len(peers) == 0 {
		logging.Debug("no peers to broadcast to", "event", "sync")
		return nil
	}

	sent := 0
	for _, p := range peers {
		if p.Send(data) {
			sent++
		}
	}
	logging.Info("clipboard broadcast",
		"event", "sync",
		"peers", sent,
		"text_len", len(text),
		"has_html", html != "",
	)
	return nil
}

// Peers lists registered connections and outbound dials still in progress.
func (m *Mesh) Peers() []syncTypes.PeerInfo {
	peers := m.snapshotPeers()
	out := make([]syncTypes.PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.Info())
	}
	out = append(out, m.pendingDials()...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Addr == out[j].Addr {
			return out[i].Direction < out[j].Direction
		}
		return out[i].Addr < out[j].Addr
	})
	return out
}

func (m *Mesh) PeerCount() int {
	m.peersMutex.RLock()
	defer m.peersMutex.RUnlock()
	return len(m.peers)
}

func (m *Mesh) snapshotPeers() []*Peer {
	m.peersMutex.RLock()
	defer m.peersMutex.RUnlock()
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	return out
}

func (m *Mesh) pendingDials() []syncTypes.PeerInfo {
	m.peersMutex.RLock()
	defer m.peersMutex.RUnlock()
	out := make([]syncTypes.PeerInfo, 0, len(m.dialing))
	for host, since := range m.dialing {
		out = append(out, syncTypes.PeerInfo{
			Addr:      net.JoinHostPort(host, strconv.Itoa(m.port)),
			Direction: directionOut,
			State:     syncTypes.PeerConnecting,
			Since:     since,
		})
	}
	return out
}

// claimDial reserves host for one outbound dial. It fails when the host is
// already connected or being dialed.
func (m *Mesh) claimDial(host string) bool {
	m.peersMutex.Lock()
	defer m.peersMutex.Unlock()
	if _, ok := m.dialing[host]; ok {
		return false
	}
	for _, p := range m.peers {
		if p.host == host {
			return false
		}
	}
	m.dialing[host] = m.clock.Now()
	return true
}

func (m *Mesh) releaseDial(host string) {
	m.peersMutex.Lock()
	delete(m.dialing, host)
	m.peersMutex.Unlock()
}

// onPeerFound is the discovery callback.
func (m *Mesh) onPeerFound(ctx context.Context, host string) {
	if m.isLocal(host) {
		logging.Debug("ignoring self-discovery", "event", "sync", "peer", host)
		return
	}
	if !m.claimDial(host) {
		return
	}

	addr := net.JoinHostPort(host, strconv.Itoa(m.port))
	go func() {
		defer m.releaseDial(host)
		if err := m.Connect(ctx, addr); err != nil {
			logging.Warn("failed to connect to peer", "event", "sync", "peer", addr, "error", err)
		}
	}()
}

// Connect dials addr (host:port) and registers the connection.
func (m *Mesh) Connect(ctx context.Context, addr string) error {
	header := http.Header{}
	header.Set(nodeHeader, m.nodeID)

	url := "ws://" + addr + syncPath
	conn, resp, err := m.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return ErrSelfConnection
		}
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}

	remoteID := resp.Header.Get(nodeHeader)
	if remoteID == m.nodeID {
		conn.Close() //nolint:errcheck
		return ErrSelfConnection
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	m.addPeer(newPeer(conn, addr, host, directionOut, remoteID))
	return nil
}

func (m *Mesh) addPeer(p *Peer) {
	p.onMessage = m.handleMessage
	p.onClose = m.removePeer

	m.peersMutex.Lock()
	old := m.peers[p.key()]
	m.peers[p.key()] = p
	count := len(m.peers)
	m.peersMutex.Unlock()

	if old != nil {
		old.Close()
	}
	p.start()
	logging.Info("peer connected",
		"event", "sync",
		"peer", p.addr,
		"direction", p.direction,
		"peers", count,
	)
}

func (m *Mesh) removePeer(p *Peer) {
	m.peersMutex.Lock()
	current, ok := m.peers[p.key()]
	if ok && current == p {
		delete(m.peers, p.key())
	}
	count := len(m.peers)
	m.peersMutex.Unlock()

	if ok && current == p {
		logging.Info("peer disconnected", "event", "sync", "peer", p.addr, "peers", count)
	}
}

func (m *Mesh) handleMessage(p *Peer, data []byte) {
	var msg syncTypes.SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Warn("invalid sync message", "event", "sync", "peer", p.addr, "error", err)
		return
	}
	if msg.Kind != syncTypes.KindClipboardSync {
		logging.Debug("ignoring message kind", "event", "sync", "kind", msg.Kind)
		return
	}
	if msg.OriginID == m.nodeID {
		logging.Debug("ignoring own message", "event", "sync", "peer", p.addr)
		return
	}
	if m.seenRecently(messageDigest(msg)) {
		logging.Debug("ignoring duplicate message", "event", "sync", "origin", msg.OriginID)
		return
	}

	logging.Info("received clipboard from peer",
		"event", "sync",
		"origin", msg.OriginID,
		"text", logging.Truncate(msg.Payload.Text, 50),
	)
	if m.onReceive != nil {
		m.onReceive(msg.Payload)
	}
}

func messageDigest(msg syncTypes.SyncMessage) [32]byte {
	html := msg.Payload.HTMLString()
	buf := make([]byte, 0, len(msg.OriginID)+len(msg.Payload.Text)+len(html)+2)
	buf = append(buf, msg.OriginID...)
	buf = append(buf, 0)
	buf = append(buf, msg.Payload.Text...)
	buf = append(buf, 0)
	buf = append(buf, html...)
	return blake3.Sum256(buf)
}

// seenRecently records digest and reports whether it was already seen
// within the dedupe window.
func (m *Mesh) seenRecently(digest [32]byte) bool {
	now := m.clock.Now()

	m.seenMutex.Lock()
	defer m.seenMutex.Unlock()

	if last, ok := m.seen[digest]; ok && now.Sub(last) < m.dedupeWindow {
		return true
	}
	m.seen[digest] = now
	return false
}

func (m *Mesh) startSeenCleanup(stop <-chan struct{}) {
	ticker := m.clock.Ticker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.cleanupSeen()
		}
	}
}

func (m *Mesh) cleanupSeen() {
	m.seenMutex.Lock()
	defer m.seenMutex.Unlock()

	now := m.clock.Now()
	initialCount := len(m.seen)
	for digest, at := range m.seen {
		if now.Sub(at) >= m.dedupeWindow {
			delete(m.seen, digest)
		}
	}

	if len(m.seen) > maxSeenEntries {
		m.trimSeen()
	}

	if removed := initialCount - len(m.seen); removed > 0 {
		logging.Debug("pruned message digests", "event", "sync", "removed", removed, "remaining", len(m.seen))
	}
}

// trimSeen keeps only the most recent digests.
func (m *Mesh) trimSeen() {
	type entry struct {
		digest [32]byte
		at     time.Time
	}
	entries := make([]entry, 0, len(m.seen))
	for digest, at := range m.seen {
		entries = append(entries, entry{digest: digest, at: at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.After(entries[j].at) })

	m.seen = make(map[[32]byte]time.Time, keepSeenEntries)
	for _, e := range entries[:keepSeenEntries] {
		m.seen[e.digest] = e.at
	}
}
