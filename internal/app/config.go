package app

import (
	"io"
	"time"

	"github.com/victorvcruz/quark/internal/bridge"
	"github.com/victorvcruz/quark/internal/daemon"
	"github.com/victorvcruz/quark/internal/logging"
	"github.com/victorvcruz/quark/internal/sync/p2p"
)

// CLI is the kong command tree.
type CLI struct {
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)." default:"info" enum:"debug,info,warn,error" env:"QUARK_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log output format." default:"text" enum:"text,json" env:"QUARK_LOG_FORMAT"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Run the clipboard daemon (default)."`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Serve clipboard tools over MCP on stdio."`
	IP      IPCmd      `cmd:"" name:"ip" help:"Print the LAN address other devices can reach."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

// InitLogging configures the global logger from the global flags.
func (c *CLI) InitLogging(w io.Writer) error {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(c.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(w, level, format)
	return nil
}

// BuildInfo is bound into command Run methods.
type BuildInfo struct {
	Version string
}

type RunCmd struct {
	PollInterval   time.Duration `name:"poll-interval" help:"Clipboard poll interval." default:"500ms" env:"QUARK_POLL_INTERVAL"`
	SuppressWindow time.Duration `name:"suppress-window" help:"How long local changes are ignored after a remote update." default:"1s" env:"QUARK_SUPPRESS_WINDOW"`
	MarkdownApps   []string      `name:"markdown-apps" help:"Applications that receive markdown as plain text." default:"Obsidian,Visual Studio Code,Cursor,Linear,GitHub" env:"QUARK_MARKDOWN_APPS"`
	Headless       bool          `name:"headless" help:"Keep the clipboard in memory instead of the OS clipboard." env:"QUARK_HEADLESS"`

	MeshPort      int    `name:"mesh-port" help:"Mesh websocket port." default:"41235" env:"QUARK_MESH_PORT"`
	NoMesh        bool   `name:"no-mesh" help:"Disable mesh sync." env:"QUARK_NO_MESH"`
	Service       string `name:"service" help:"mDNS service type." default:"_quark-clip._tcp" env:"QUARK_SERVICE"`
	Discovery     string `name:"discovery" help:"Peer discovery backend." default:"mdns" enum:"mdns,broadcast,both,none" env:"QUARK_DISCOVERY"`
	DiscoveryPort int    `name:"discovery-port" help:"UDP port for broadcast discovery." default:"9090" env:"QUARK_DISCOVERY_PORT"`

	BridgeAddr     string        `name:"bridge-addr" help:"Local bridge listen address." default:"127.0.0.1:14314" env:"QUARK_BRIDGE_ADDR"`
	ShutdownGrace  time.Duration `name:"shutdown-grace" help:"Time allowed for shutdown before forcing exit." default:"3s" env:"QUARK_SHUTDOWN_GRACE"`
	StatusInterval time.Duration `name:"status-interval" help:"Interval between peer status log lines." default:"30s" env:"QUARK_STATUS_INTERVAL"`
}

func (c *RunCmd) daemonConfig() daemon.Config {
	return daemon.Config{
		PollInterval:   c.PollInterval,
		SuppressWindow: c.SuppressWindow,
		MarkdownApps:   c.MarkdownApps,
	}
}

// discovery builds the configured backend, or nil for none.
func (c *RunCmd) discovery(nodeID string) p2p.Discovery {
	switch c.Discovery {
	case "mdns":
		return p2p.NewMDNSDiscovery(nodeID, c.Service, c.MeshPort)
	case "broadcast":
		return p2p.NewBroadcastDiscovery(nodeID, c.MeshPort, c.DiscoveryPort)
	case "both":
		return p2p.MultiDiscovery{
			p2p.NewMDNSDiscovery(nodeID, c.Service, c.MeshPort),
			p2p.NewBroadcastDiscovery(nodeID, c.MeshPort, c.DiscoveryPort),
		}
	default:
		return nil
	}
}

type MCPCmd struct {
	BridgeAddr string `name:"bridge-addr" help:"Address of the running daemon's bridge." default:"127.0.0.1:14314" env:"QUARK_BRIDGE_ADDR"`
}

func (c *MCPCmd) Run(info BuildInfo) error {
	return bridge.ServeMCP(bridge.NewClient(c.BridgeAddr), info.Version)
}

type VersionCmd struct{}
