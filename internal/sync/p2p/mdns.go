package p2p

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/victorvcruz/quark/internal/logging"
)

const (
	DefaultService = "_quark-clip._tcp"

	mdnsDomain       = "local."
	mdnsBrowseWindow = 3 * time.Second
	mdnsInterval     = 15 * time.Second
)

// MDNSDiscovery advertises the node under a DNS-SD service and browses the
// same service for others.
type MDNSDiscovery struct {
	nodeID  string
	service string
	port    int

	mu     sync.Mutex
	server *zeroconf.Server
	cancel context.CancelFunc
}

func NewMDNSDiscovery(nodeID, service string, port int) *MDNSDiscovery {
	if service == "" {
		service = DefaultService
	}
	return &MDNSDiscovery{nodeID: nodeID, service: service, port: port}
}

func (d *MDNSDiscovery) instanceName() string {
	id := d.nodeID
	if len(id) > 8 {
		id = id[:8]
	}
	return "quark-" + id
}

func (d *MDNSDiscovery) Start(ctx context.Context, found func(string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server != nil {
		return fmt.Errorf("mdns discovery already running")
	}

	server, err := zeroconf.Register(d.instanceName(), d.service, mdnsDomain, d.port, []string{"id=" + d.nodeID}, nil)
	if err != nil {
		return fmt.Errorf("failed to register mdns service: %w", err)
	}
	d.server = server

	browseCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.browseLoop(browseCtx, found)

	logging.Info("peer discovery started", "event", "sync", "backend", "mdns", "service", d.service)
	return nil
}

func (d *MDNSDiscovery) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil {
		return
	}
	d.cancel()
	d.server.Shutdown()
	d.server = nil
	logging.Info("peer discovery stopped", "event", "sync", "backend", "mdns")
}

func (d *MDNSDiscovery) browseLoop(ctx context.Context, found func(string)) {
	ticker := time.NewTicker(mdnsInterval)
	defer ticker.Stop()

	for {
		d.browseOnce(ctx, found)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *MDNSDiscovery) browseOnce(ctx context.Context, found func(string)) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		logging.Warn("mdns resolver unavailable", "event", "sync", "error", err)
		return
	}

	browseCtx, cancel := context.WithTimeout(ctx, mdnsBrowseWindow)
	defer cancel()

	// zeroconf closes entries once browseCtx ends, so the reader drains
	// every entry it sends.
	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.drain(entries, found)
	}()

	if err := resolver.Browse(browseCtx, d.service, mdnsDomain, entries); err != nil {
		logging.Warn("mdns browse failed", "event", "sync", "error", err)
		cancel()
	}
	<-done
}

func (d *MDNSDiscovery) drain(entries <-chan *zeroconf.ServiceEntry, found func(string)) {
	for entry := range entries {
		d.handleEntry(entry, found)
	}
}

func (d *MDNSDiscovery) handleEntry(entry *zeroconf.ServiceEntry, found func(string)) {
	if entry == nil || entry.Port != d.port || txtValue(entry.Text, "id") == d.nodeID {
		return
	}
	for _, addr := range entry.AddrIPv4 {
		found(addr.String())
	}
}

func txtValue(records []string, key string) string {
	prefix := key + "="
	for _, r := range records {
		if strings.HasPrefix(r, prefix) {
			return strings.TrimPrefix(r, prefix)
		}
	}
	return ""
}
