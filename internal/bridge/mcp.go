package bridge

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ClipboardClient is what the MCP tools need from the daemon.
type ClipboardClient interface {
	GetClipboard(ctx context.Context) (string, error)
	SetClipboard(ctx context.Context, text string) error
}

const daemonHint = "Is the quark daemon running? Start it with 'quark run'."

// GetClipboardTool handles the get_clipboard MCP tool.
type GetClipboardTool struct {
	client ClipboardClient
}

func NewGetClipboardTool(client ClipboardClient) *GetClipboardTool {
	return &GetClipboardTool{client: client}
}

func (t *GetClipboardTool) Definition() mcp.Tool {
	return mcp.NewTool("get_clipboard",
		mcp.WithDescription("Read the user's current operating system clipboard."),
	)
}

func (t *GetClipboardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := t.client.GetClipboard(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v. %s", err, daemonHint)), nil
	}
	if text == "" {
		return mcp.NewToolResultText("(Clipboard is empty)"), nil
	}
	return mcp.NewToolResultText(text), nil
}

// SetClipboardTool handles the set_clipboard MCP tool.
type SetClipboardTool struct {
	client ClipboardClient
}

func NewSetClipboardTool(client ClipboardClient) *SetClipboardTool {
	return &SetClipboardTool{client: client}
}

func (t *SetClipboardTool) Definition() mcp.Tool {
	return mcp.NewTool("set_clipboard",
		mcp.WithDescription("Write text directly to the user's operating system clipboard."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to place on the clipboard"),
		),
	)
}

func (t *SetClipboardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	if err := t.client.SetClipboard(ctx, text); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v. %s", err, daemonHint)), nil
	}
	return mcp.NewToolResultText("Successfully updated clipboard."), nil
}

// NewMCPServer exposes the clipboard tools over MCP.
func NewMCPServer(client ClipboardClient, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"quark-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	getTool := NewGetClipboardTool(client)
	s.AddTool(getTool.Definition(), getTool.Handle)

	setTool := NewSetClipboardTool(client)
	s.AddTool(setTool.Definition(), setTool.Handle)

	return s
}

// ServeMCP serves the tools on stdin/stdout until the client disconnects.
func ServeMCP(client ClipboardClient, version string) error {
	return server.ServeStdio(NewMCPServer(client, version))
}
