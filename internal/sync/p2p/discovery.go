package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/victorvcruz/quark/internal/logging"
	syncTypes "github.com/victorvcruz/quark/internal/sync"
)

// Discovery finds candidate peer hosts on the local network. found may be
// called repeatedly for the same host; the mesh filters known ones.
type Discovery interface {
	Start(ctx context.Context, found func(host string)) error
	Stop()
}

// MultiDiscovery runs several backends side by side.
type MultiDiscovery []Discovery

func (md MultiDiscovery) Start(ctx context.Context, found func(string)) error {
	for i, d := range md {
		if err := d.Start(ctx, found); err != nil {
			for _, started := range md[:i] {
				started.Stop()
			}
			return err
		}
	}
	return nil
}

func (md MultiDiscovery) Stop() {
	for _, d := range md {
		d.Stop()
	}
}

const (
	DefaultDiscoveryPort = 9090

	announceInterval = 10 * time.Second
	multicastAddr    = "224.0.0.251"
	discoveryVersion = "1.0"
)

// BroadcastDiscovery announces this node with UDP broadcast and multicast
// datagrams and answers announcements from others.
type BroadcastDiscovery struct {
	nodeID        string
	meshPort      int
	discoveryPort int

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	conn     *net.UDPConn
}

func NewBroadcastDiscovery(nodeID string, meshPort, discoveryPort int) *BroadcastDiscovery {
	return &BroadcastDiscovery{
		nodeID:        nodeID,
		meshPort:      meshPort,
		discoveryPort: discoveryPort,
	}
}

func (pd *BroadcastDiscovery) Start(ctx context.Context, found func(string)) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.running {
		return fmt.Errorf("discovery already running")
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", pd.discoveryPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", pd.discoveryPort, err)
	}

	pd.conn = conn
	pd.running = true
	pd.stopChan = make(chan struct{})

	go pd.listenForPeers(conn, found)
	go pd.announcePresence(ctx, pd.stopChan)

	logging.Info("peer discovery started", "event", "sync", "backend", "broadcast", "port", pd.discoveryPort)
	return nil
}

func (pd *BroadcastDiscovery) Stop() {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if !pd.running {
		return
	}

	pd.running = false
	close(pd.stopChan)
	pd.conn.Close() //nolint:errcheck
	logging.Info("peer discovery stopped", "event", "sync", "backend", "broadcast")
}

func (pd *BroadcastDiscovery) listenForPeers(conn *net.UDPConn, found func(string)) {
	buffer := make([]byte, 1024)

	for {
		n, clientAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Debug("error reading UDP message", "event", "sync", "error", err)
			continue
		}

		var msg syncTypes.DiscoveryMessage
		if err := json.Unmarshal(buffer[:n], &msg); err != nil {
			logging.Debug("invalid discovery message", "event", "sync", "error", err)
			continue
		}
		pd.handleDiscoveryMessage(&msg, clientAddr.IP.String(), found)
	}
}

func (pd *BroadcastDiscovery) handleDiscoveryMessage(msg *syncTypes.DiscoveryMessage, senderIP string, found func(string)) {
	if msg.PeerID == pd.nodeID {
		return
	}
	if msg.Port != strconv.Itoa(pd.meshPort) {
		logging.Debug("ignoring peer on another mesh port", "event", "sync", "peer", senderIP, "port", msg.Port)
		return
	}

	switch msg.Type {
	case "announce":
		found(senderIP)
		pd.sendResponse(senderIP)
	case "response":
		found(senderIP)
	}
}

func (pd *BroadcastDiscovery) message(kind string) ([]byte, error) {
	return json.Marshal(syncTypes.DiscoveryMessage{
		Type:    kind,
		PeerID:  pd.nodeID,
		Port:    strconv.Itoa(pd.meshPort),
		Version: discoveryVersion,
	})
}

func (pd *BroadcastDiscovery) announcePresence(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	pd.announce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			pd.announce()
		}
	}
}

func (pd *BroadcastDiscovery) announce() {
	data, err := pd.message("announce")
	if err != nil {
		logging.Warn("failed to marshal announcement", "event", "sync", "error", err)
		return
	}

	targets := append(broadcastAddresses(), multicastAddr)
	successCount := 0
	for _, target := range targets {
		if err := sendDatagram(target, pd.discoveryPort, data); err != nil {
			logging.Debug("announcement failed", "event", "sync", "target", target, "error", err)
			continue
		}
		successCount++
	}

	if successCount == 0 {
		logging.Warn("failed to announce on any address", "event", "sync")
	}
}

func (pd *BroadcastDiscovery) sendResponse(targetIP string) {
	data, err := pd.message("response")
	if err != nil {
		return
	}
	if err := sendDatagram(targetIP, pd.discoveryPort, data); err != nil {
		logging.Debug("discovery response failed", "event", "sync", "target", targetIP, "error", err)
	}
}

func sendDatagram(host string, port int, data []byte) error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	_, err = conn.Write(data)
	return err
}

// broadcastAddresses returns the directed broadcast address of every usable
// IPv4 interface, plus the limited broadcast address.
func broadcastAddresses() []string {
	var broadcastAddrs []string
	seen := make(map[string]bool)

	interfaces, err := net.Interfaces()
	if err != nil {
		return []string{"255.255.255.255"}
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "br-") || strings.HasPrefix(iface.Name, "veth") {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			bcast := directedBroadcast(ipnet)
			if bcast != "" && !seen[bcast] && isValidBroadcastAddr(bcast) {
				broadcastAddrs = append(broadcastAddrs, bcast)
				seen[bcast] = true
			}
		}
	}

	if !seen["255.255.255.255"] {
		broadcastAddrs = append(broadcastAddrs, "255.255.255.255")
	}
	return broadcastAddrs
}

func directedBroadcast(ipnet *net.IPNet) string {
	ipv4 := ipnet.IP.To4()
	if ipv4 == nil || len(ipnet.Mask) != net.IPv4len {
		return ""
	}
	broadcast := make(net.IP, net.IPv4len)
	for i := range broadcast {
		broadcast[i] = ipv4[i] | ^ipnet.Mask[i]
	}
	return broadcast.String()
}

func isValidBroadcastAddr(addr string) bool {
	invalid := []string{
		"0.0.0.255",
		"0.0.255.255",
		"0.255.255.255",
		"127.255.255.255",
	}

	for _, inv := range invalid {
		if addr == inv {
			return false
		}
	}

	return strings.HasSuffix(addr, ".255")
}
