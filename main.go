package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/victorvcruz/quark/internal/app"
)

var version = "dev"

func main() {
	var cli app.CLI
	kctx := kong.Parse(&cli,
		kong.Name("quark"),
		kong.Description("Clipboard daemon with content transforms and LAN sync."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Bind(app.BuildInfo{Version: version}),
	)

	// Logs go to stderr: the mcp command owns stdout.
	kctx.FatalIfErrorf(cli.InitLogging(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	kctx.FatalIfErrorf(kctx.Run())
}
