package sync

import "context"

// Broadcaster sends a local clipboard change to every open peer.
type Broadcaster interface {
	Broadcast(text, html string) error
}

type PeerManager interface {
	PeerCount() int
	Peers() []PeerInfo
}

// Syncer is a running mesh node.
type Syncer interface {
	Broadcaster
	PeerManager
	Start(ctx context.Context) error
	Stop()
	SetOnReceive(callback func(Payload))
}
