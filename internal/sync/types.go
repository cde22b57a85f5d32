package sync

import (
	"time"

	"github.com/google/uuid"
)

// KindClipboardSync tags clipboard change messages on the mesh wire.
const KindClipboardSync = "CLIPBOARD_SYNC"

// Payload is the clipboard content carried by a SyncMessage. HTML is
// omitted-or-null when the change has no markup.
type Payload struct {
	Text string  `json:"text"`
	HTML *string `json:"html"`
}

// HTMLString returns the markup, or "" when absent.
func (p Payload) HTMLString() string {
	if p.HTML == nil {
		return ""
	}
	return *p.HTML
}

// SyncMessage is the unit exchanged between mesh nodes.
type SyncMessage struct {
	Kind     string  `json:"kind"`
	OriginID string  `json:"originId"`
	Payload  Payload `json:"payload"`
}

// NewSyncMessage builds a clipboard change message from this node.
func NewSyncMessage(originID, text, html string) SyncMessage {
	p := Payload{Text: text}
	if html != "" {
		p.HTML = &html
	}
	return SyncMessage{Kind: KindClipboardSync, OriginID: originID, Payload: p}
}

// NewNodeID returns a fresh node identity. Identities are never persisted.
func NewNodeID() string {
	return uuid.NewString()
}

type PeerState string

const (
	PeerConnecting PeerState = "connecting"
	PeerOpen       PeerState = "open"
	PeerClosed     PeerState = "closed"
)

type PeerInfo struct {
	Addr      string    `json:"addr"`
	NodeID    string    `json:"node_id,omitempty"`
	Direction string    `json:"direction"`
	State     PeerState `json:"state"`
	Since     time.Time `json:"since"`
}

// DiscoveryMessage is the datagram used by the UDP broadcast backend.
type DiscoveryMessage struct {
	Type    string `json:"type"`
	PeerID  string `json:"peer_id"`
	Port    string `json:"port"`
	Version string `json:"version"`
}
