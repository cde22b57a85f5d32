package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// linuxProvider shells out to wl-clipboard under Wayland and to xclip
// otherwise. xclip can own a single target per invocation, so HTML writes
// replace the plain-text flavor.
type linuxProvider struct {
	run     runner
	wayland bool
}

// NewSystemProvider returns the clipboard backend for this platform.
func NewSystemProvider() (Provider, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-paste"); err == nil {
			return &linuxProvider{run: runCommand, wayland: true}, nil
		}
	}
	if _, err := exec.LookPath("xclip"); err != nil {
		return nil, fmt.Errorf("xclip not found in PATH: %w", ErrUnavailable)
	}
	return &linuxProvider{run: runCommand}, nil
}

func (p *linuxProvider) Read(ctx context.Context) (Snapshot, error) {
	text, err := p.readTarget(ctx, "")
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Snapshot{}, err
		}
		// An empty selection has no owner; report it as no content.
		text = ""
	}

	var html string
	if p.hasHTML(ctx) {
		if out, err := p.readTarget(ctx, "text/html"); err == nil {
			html = out
		}
	}
	return Snapshot{Text: text, HTML: html}, nil
}

func (p *linuxProvider) readTarget(ctx context.Context, target string) (string, error) {
	if p.wayland {
		args := []string{"--no-newline"}
		if target != "" {
			args = append(args, "--type", target)
		}
		return p.run(ctx, "", "wl-paste", args...)
	}
	args := []string{"-selection", "clipboard", "-o"}
	if target != "" {
		args = append(args, "-t", target)
	}
	return p.run(ctx, "", "xclip", args...)
}

func (p *linuxProvider) hasHTML(ctx context.Context) bool {
	var out string
	var err error
	if p.wayland {
		out, err = p.run(ctx, "", "wl-paste", "--list-types")
	} else {
		out, err = p.run(ctx, "", "xclip", "-selection", "clipboard", "-o", "-t", "TARGETS")
	}
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "text/html" {
			return true
		}
	}
	return false
}

func (p *linuxProvider) WriteText(ctx context.Context, text string) error {
	if p.wayland {
		_, err := p.run(ctx, text, "wl-copy")
		return err
	}
	_, err := p.run(ctx, text, "xclip", "-selection", "clipboard", "-i")
	return err
}

func (p *linuxProvider) WriteHTML(ctx context.Context, html, text string) error {
	if p.wayland {
		_, err := p.run(ctx, html, "wl-copy", "--type", "text/html")
		return err
	}
	_, err := p.run(ctx, html, "xclip", "-selection", "clipboard", "-t", "text/html", "-i")
	return err
}

func (p *linuxProvider) ActiveApp(ctx context.Context) (string, error) {
	if p.wayland {
		return "", fmt.Errorf("foreground window query under wayland: %w", ErrUnavailable)
	}
	out, err := p.run(ctx, "", "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
