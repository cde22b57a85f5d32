package clipboard

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
)

const frontmostAppJXA = `ObjC.import("AppKit"); $.NSWorkspace.sharedWorkspace.frontmostApplication.localizedName.js;`

// darwinProvider uses pbpaste/pbcopy for plain text and osascript for the
// HTML flavor and the frontmost application.
type darwinProvider struct {
	run runner
}

// NewSystemProvider returns the clipboard backend for this platform.
func NewSystemProvider() (Provider, error) {
	return &darwinProvider{run: runCommand}, nil
}

func (p *darwinProvider) Read(ctx context.Context) (Snapshot, error) {
	text, err := p.run(ctx, "", "pbpaste")
	if err != nil {
		return Snapshot{}, err
	}

	var html string
	if out, err := p.run(ctx, "", "osascript", "-e", "the clipboard as «class HTML»"); err == nil {
		html = decodeAppleHTML(out)
	}
	return Snapshot{Text: text, HTML: html}, nil
}

func (p *darwinProvider) WriteText(ctx context.Context, text string) error {
	_, err := p.run(ctx, text, "pbcopy")
	return err
}

// WriteHTML sets the HTML and UTF-8 text flavors in one pasteboard write so
// rich targets see the markup and plain targets see text.
func (p *darwinProvider) WriteHTML(ctx context.Context, html, text string) error {
	script := fmt.Sprintf(
		"set the clipboard to {«class HTML»:«data HTML%s», «class utf8»:«data utf8%s»}",
		strings.ToUpper(hex.EncodeToString([]byte(html))),
		strings.ToUpper(hex.EncodeToString([]byte(text))),
	)
	_, err := p.run(ctx, "", "osascript", "-e", script)
	return err
}

func (p *darwinProvider) ActiveApp(ctx context.Context) (string, error) {
	out, err := p.run(ctx, "", "osascript", "-l", "JavaScript", "-e", frontmostAppJXA)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
