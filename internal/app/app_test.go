package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorvcruz/quark/internal/bridge"
	"github.com/victorvcruz/quark/internal/clipboard"
	"github.com/victorvcruz/quark/internal/sync/p2p"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("quark"))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestParseDefaults(t *testing.T) {
	cli, kctx := parse(t)

	assert.Equal(t, "run", kctx.Command())
	assert.Equal(t, "info", cli.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cli.Run.PollInterval)
	assert.Equal(t, time.Second, cli.Run.SuppressWindow)
	assert.Equal(t, 41235, cli.Run.MeshPort)
	assert.Equal(t, "127.0.0.1:14314", cli.Run.BridgeAddr)
	assert.Equal(t, "mdns", cli.Run.Discovery)
	assert.Equal(t, 3*time.Second, cli.Run.ShutdownGrace)
	assert.Equal(t, []string{"Obsidian", "Visual Studio Code", "Cursor", "Linear", "GitHub"}, cli.Run.MarkdownApps)
	assert.False(t, cli.Run.NoMesh)
}

func TestParseFlags(t *testing.T) {
	cli, kctx := parse(t, "run", "--poll-interval=250ms", "--discovery=both", "--no-mesh", "--markdown-apps=Zed,Typora")

	assert.Equal(t, "run", kctx.Command())
	assert.Equal(t, 250*time.Millisecond, cli.Run.PollInterval)
	assert.Equal(t, "both", cli.Run.Discovery)
	assert.True(t, cli.Run.NoMesh)
	assert.Equal(t, []string{"Zed", "Typora"}, cli.Run.MarkdownApps)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("QUARK_MESH_PORT", "5000")
	t.Setenv("QUARK_LOG_LEVEL", "debug")

	cli, _ := parse(t)
	assert.Equal(t, 5000, cli.Run.MeshPort)
	assert.Equal(t, "debug", cli.LogLevel)
}

func TestParseRejectsUnknownDiscovery(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("quark"))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"run", "--discovery=carrier-pigeon"})
	assert.Error(t, err)
}

func TestParseSubcommands(t *testing.T) {
	_, kctx := parse(t, "mcp", "--bridge-addr=127.0.0.1:9999")
	assert.Equal(t, "mcp", kctx.Command())

	_, kctx = parse(t, "ip")
	assert.Equal(t, "ip", kctx.Command())
}

func TestDiscoverySelection(t *testing.T) {
	cmd := &RunCmd{Service: "_quark-clip._tcp", MeshPort: 41235, DiscoveryPort: 9090}

	cmd.Discovery = "mdns"
	assert.IsType(t, &p2p.MDNSDiscovery{}, cmd.discovery("node"))

	cmd.Discovery = "broadcast"
	assert.IsType(t, &p2p.BroadcastDiscovery{}, cmd.discovery("node"))

	cmd.Discovery = "both"
	multi, ok := cmd.discovery("node").(p2p.MultiDiscovery)
	require.True(t, ok)
	assert.Len(t, multi, 2)

	cmd.Discovery = "none"
	assert.Nil(t, cmd.discovery("node"))
}

func TestPrintAccessibleIP(t *testing.T) {
	var buf bytes.Buffer
	printAccessibleIP(&buf, "192.168.1.20")
	assert.Equal(t, "Accessible IP: 192.168.1.20\n", buf.String())

	buf.Reset()
	printAccessibleIP(&buf, "")
	assert.Equal(t, "No accessible IP found\n", buf.String())
}

func testConfig() *RunCmd {
	return &RunCmd{
		PollInterval:   10 * time.Millisecond,
		SuppressWindow: time.Second,
		MeshPort:       0,
		Discovery:      "none",
		BridgeAddr:     "127.0.0.1:0",
		ShutdownGrace:  time.Second,
	}
}

func startApp(t *testing.T, a *App) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.BridgeAddr() != "" }, 2*time.Second, 10*time.Millisecond)
	return cancelFn, errCh
}

func TestAppServesBridge(t *testing.T) {
	cfg := testConfig()
	cfg.NoMesh = true

	mem := clipboard.NewMemory(clipboard.Snapshot{Text: "initial"})
	a := New("test", cfg)
	a.provider = mem
	a.exit = func(int) { t.Error("watchdog fired") }

	cancel, done := startApp(t, a)
	client := bridge.NewClient(a.BridgeAddr())

	text, err := client.GetClipboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "initial", text)

	require.NoError(t, client.SetClipboard(context.Background(), "from bridge"))
	assert.Equal(t, "from bridge", mem.Current().Text)

	resp, err := http.Get("http://" + a.BridgeAddr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status bridge.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, a.nodeID, status.NodeID)
	assert.Equal(t, 0, status.Peers)
	assert.Contains(t, []string{"idle", "awaiting_self_confirm"}, status.Guard)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppRunsWithMesh(t *testing.T) {
	a := New("test", testConfig())
	a.provider = clipboard.NewMemory(clipboard.Snapshot{})
	a.exit = func(int) { t.Error("watchdog fired") }

	cancel, done := startApp(t, a)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppFailsOnBusyBridgeAddr(t *testing.T) {
	first := New("test", testConfig())
	first.config.NoMesh = true
	first.provider = clipboard.NewMemory(clipboard.Snapshot{})
	first.exit = func(int) {}
	cancel, done := startApp(t, first)
	defer func() {
		cancel()
		<-done
	}()

	cfg := testConfig()
	cfg.NoMesh = true
	cfg.BridgeAddr = first.BridgeAddr()
	second := New("test", cfg)
	second.provider = clipboard.NewMemory(clipboard.Snapshot{})

	err := second.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start bridge")
}
