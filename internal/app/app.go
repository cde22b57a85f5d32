// Package app wires the clipboard daemon together and implements the CLI
// commands.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/victorvcruz/quark/internal/bridge"
	"github.com/victorvcruz/quark/internal/clipboard"
	"github.com/victorvcruz/quark/internal/daemon"
	"github.com/victorvcruz/quark/internal/logging"
	"github.com/victorvcruz/quark/internal/network/ip"
	syncTypes "github.com/victorvcruz/quark/internal/sync"
	"github.com/victorvcruz/quark/internal/sync/p2p"
)

type App struct {
	version  string
	config   *RunCmd
	nodeID   string
	provider clipboard.Provider
	exit     func(code int)

	mu     sync.Mutex
	bridge *bridge.Server
}

func New(version string, config *RunCmd) *App {
	return &App{
		version: version,
		config:  config,
		nodeID:  syncTypes.NewNodeID(),
		exit:    os.Exit,
	}
}

// Run is the kong entry point of the run command.
func (c *RunCmd) Run(ctx context.Context, info BuildInfo) error {
	return New(info.Version, c).Run(ctx)
}

func (a *App) Run(ctx context.Context) error {
	a.printStartupInfo()

	provider, err := a.clipboardProvider()
	if err != nil {
		return err
	}
	manager := clipboard.NewManager(provider)

	var (
		mesh        *p2p.Mesh
		broadcaster syncTypes.Broadcaster
		peers       syncTypes.PeerManager
	)
	if !a.config.NoMesh {
		mesh = p2p.NewMesh(p2p.Config{
			NodeID:    a.nodeID,
			Port:      a.config.MeshPort,
			Discovery: a.config.discovery(a.nodeID),
		})
		broadcaster = mesh
		peers = mesh
	}

	d := daemon.New(a.config.daemonConfig(), manager, broadcaster)

	if mesh != nil {
		a.setupReceiveHandler(ctx, mesh, d)
		if err := mesh.Start(ctx); err != nil {
			return fmt.Errorf("failed to start mesh: %w", err)
		}
	}

	bridgeServer := bridge.NewServer(d, a.statusFunc(d, peers))
	if err := bridgeServer.Start(a.config.BridgeAddr); err != nil {
		if mesh != nil {
			mesh.Stop()
		}
		return fmt.Errorf("failed to start bridge: %w", err)
	}
	a.mu.Lock()
	a.bridge = bridgeServer
	a.mu.Unlock()

	if peers != nil {
		a.startPeerStatusReporter(ctx, peers)
	}

	err = d.Run(ctx)
	a.shutdown(bridgeServer, mesh)
	return err
}

func (a *App) clipboardProvider() (clipboard.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	if a.config.Headless {
		return clipboard.NewMemory(clipboard.Snapshot{}), nil
	}
	provider, err := clipboard.NewSystemProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to open system clipboard: %w", err)
	}
	return provider, nil
}

// BridgeAddr returns the bound bridge address once the daemon is serving.
func (a *App) BridgeAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bridge == nil {
		return ""
	}
	return a.bridge.Addr()
}

func (a *App) printStartupInfo() {
	logging.Info("starting quark",
		"version", a.version,
		"node", a.nodeID,
		"mesh", !a.config.NoMesh,
		"mesh_port", a.config.MeshPort,
		"discovery", a.config.Discovery,
		"bridge", a.config.BridgeAddr,
		"headless", a.config.Headless,
	)
}

func (a *App) setupReceiveHandler(ctx context.Context, syncer syncTypes.Syncer, d *daemon.Daemon) {
	syncer.SetOnReceive(func(p syncTypes.Payload) {
		if err := d.ApplyRemote(ctx, p); err != nil {
			logging.Debug("remote clipboard not applied", "event", "sync", "error", err)
		}
	})
}

func (a *App) statusFunc(d *daemon.Daemon, peers syncTypes.PeerManager) bridge.StatusFunc {
	return func(ctx context.Context) (bridge.Status, error) {
		state, err := d.GuardState(ctx)
		if err != nil {
			return bridge.Status{}, err
		}
		status := bridge.Status{NodeID: a.nodeID, Guard: state.String()}
		if peers != nil {
			status.Peers = peers.PeerCount()
		}
		return status, nil
	}
}

func (a *App) startPeerStatusReporter(ctx context.Context, peers syncTypes.PeerManager) {
	if a.config.StatusInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(a.config.StatusInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if count := peers.PeerCount(); count > 0 {
					logging.Info("connected peers", "event", "sync", "peers", count)
				} else {
					logging.Info("no peers discovered yet", "event", "sync")
				}
			}
		}
	}()
}

// shutdown closes the bridge and the mesh. If that takes longer than the
// grace period the process exits anyway.
func (a *App) shutdown(bridgeServer *bridge.Server, mesh *p2p.Mesh) {
	logging.Info("shutting down")

	grace := a.config.ShutdownGrace
	watchdog := time.AfterFunc(grace, func() {
		logging.Error("forced shutdown after grace period", "grace", grace.String())
		a.exit(1)
	})
	defer watchdog.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := bridgeServer.Shutdown(ctx); err != nil {
		logging.Warn("bridge shutdown", "error", err)
	}
	if mesh != nil {
		mesh.Stop()
	}
	logging.Info("goodbye")
}

type IPCmd struct{}

func (c *IPCmd) Run() error {
	printAccessibleIP(os.Stdout, ip.AccessibleIP())
	return nil
}

func printAccessibleIP(w io.Writer, addr string) {
	if addr == "" {
		fmt.Fprintln(w, "No accessible IP found")
		return
	}
	fmt.Fprintln(w, "Accessible IP:", addr)
}

func (c *VersionCmd) Run(info BuildInfo) error {
	fmt.Printf("quark version %s\n", info.Version)
	return nil
}
