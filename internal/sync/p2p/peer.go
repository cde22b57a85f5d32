package p2p

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/victorvcruz/quark/internal/logging"
	syncTypes "github.com/victorvcruz/quark/internal/sync"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20
	sendBuffer     = 64

	directionIn  = "in"
	directionOut = "out"
)

// Peer is one websocket connection to another node. Its lifecycle is
// connecting, open, closed; a closed peer is never reopened.
type Peer struct {
	addr      string
	host      string
	direction string
	nodeID    string
	conn      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	state syncTypes.PeerState
	since time.Time

	onMessage func(*Peer, []byte)
	onClose   func(*Peer)
}

func newPeer(conn *websocket.Conn, addr, host, direction, nodeID string) *Peer {
	return &Peer{
		addr:      addr,
		host:      host,
		direction: direction,
		nodeID:    nodeID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
		state:     syncTypes.PeerConnecting,
		since:     time.Now(),
	}
}

func (p *Peer) key() string {
	return p.direction + ":" + p.addr
}

func (p *Peer) State() syncTypes.PeerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Peer) Info() syncTypes.PeerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return syncTypes.PeerInfo{
		Addr:      p.addr,
		NodeID:    p.nodeID,
		Direction: p.direction,
		State:     p.state,
		Since:     p.since,
	}
}

func (p *Peer) setState(s syncTypes.PeerState) {
	p.mu.Lock()
	p.state = s
	p.since = time.Now()
	p.mu.Unlock()
}

// start opens the peer and runs its pumps.
func (p *Peer) start() {
	p.setState(syncTypes.PeerOpen)
	go p.writePump()
	go p.readPump()
}

// Send queues data without blocking. A peer that cannot keep up is closed.
func (p *Peer) Send(data []byte) bool {
	if p.State() != syncTypes.PeerOpen {
		return false
	}
	select {
	case <-p.closed:
		return false
	case p.send <- data:
		return true
	default:
		logging.Warn("peer send buffer full, dropping connection", "peer", p.addr)
		p.Close()
		return false
	}
}

// Close is idempotent.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.setState(syncTypes.PeerClosed)
		close(p.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = p.conn.Close()
		if p.onClose != nil {
			p.onClose(p)
		}
	})
}

func (p *Peer) readPump() {
	defer p.Close()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn("peer connection lost", "peer", p.addr, "error", err)
			}
			return
		}
		if p.onMessage != nil {
			p.onMessage(p, data)
		}
	}
}

func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.closed:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Warn("peer write failed", "peer", p.addr, "error", err)
				p.Close()
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.Close()
				return
			}
		}
	}
}
