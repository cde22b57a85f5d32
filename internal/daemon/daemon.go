// Package daemon is the clipboard coordinator. A single goroutine owns the
// guard, the last observed snapshot and the cached transform result; poll
// ticks, remote applies and bridge requests are all serialized through it.
package daemon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/victorvcruz/quark/internal/clipboard"
	"github.com/victorvcruz/quark/internal/logging"
	syncTypes "github.com/victorvcruz/quark/internal/sync"
	"github.com/victorvcruz/quark/internal/transform"
)

const (
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultSuppressWindow = time.Second
)

// DefaultMarkdownApps receive markdown as their plain-text flavor.
var DefaultMarkdownApps = []string{"Obsidian", "Visual Studio Code", "Cursor", "Linear", "GitHub"}

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("daemon stopped")

type Config struct {
	PollInterval   time.Duration
	SuppressWindow time.Duration
	MarkdownApps   []string
	Clock          clock.Clock
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SuppressWindow <= 0 {
		c.SuppressWindow = DefaultSuppressWindow
	}
	if c.MarkdownApps == nil {
		c.MarkdownApps = DefaultMarkdownApps
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

type event func(ctx context.Context)

type Daemon struct {
	cfg    Config
	clip   *clipboard.Manager
	mesh   syncTypes.Broadcaster
	guard  *syncTypes.Guard
	events chan event
	done   chan struct{}

	// Owned by the Run goroutine.
	last    clipboard.Snapshot
	lastApp string
	cached  *transform.Result
}

// New builds a coordinator. mesh may be nil, which disables broadcasting.
func New(cfg Config, clip *clipboard.Manager, mesh syncTypes.Broadcaster) *Daemon {
	cfg = cfg.withDefaults()
	return &Daemon{
		cfg:    cfg,
		clip:   clip,
		mesh:   mesh,
		guard:  syncTypes.NewGuard(cfg.Clock, cfg.SuppressWindow),
		events: make(chan event),
		done:   make(chan struct{}),
	}
}

// Run polls the clipboard until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	defer close(d.done)

	d.last = d.clip.Read(ctx)
	d.lastApp = d.clip.ActiveApp(ctx)

	ticker := d.cfg.Clock.Ticker(d.cfg.PollInterval)
	defer ticker.Stop()

	logging.Info("clipboard loop started",
		"event", "clipboard",
		"poll_interval", d.cfg.PollInterval.String(),
		"suppress_window", d.cfg.SuppressWindow.String(),
	)

	for {
		select {
		case <-ctx.Done():
			logging.Info("clipboard loop stopped", "event", "clipboard")
			return nil
		case <-ticker.C:
			d.tick(ctx)
		case ev := <-d.events:
			ev(ctx)
		}
	}
}

// do runs fn on the coordinator goroutine and waits for it to finish.
func (d *Daemon) do(ctx context.Context, fn event) error {
	finished := make(chan struct{})
	wrapped := func(ctx context.Context) {
		defer close(finished)
		fn(ctx)
	}

	select {
	case d.events <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}
}

// ApplyRemote writes a payload received from a peer. It is called from mesh
// goroutines and blocks until the coordinator has applied it.
func (d *Daemon) ApplyRemote(ctx context.Context, p syncTypes.Payload) error {
	return d.do(ctx, func(ctx context.Context) {
		d.applyRemote(ctx, p)
	})
}

// ReadText returns the current clipboard text.
func (d *Daemon) ReadText(ctx context.Context) (string, error) {
	var text string
	err := d.do(ctx, func(ctx context.Context) {
		text = d.clip.Read(ctx).Text
	})
	return text, err
}

// Push writes text as final content through the guarded write path and
// broadcasts it. The pipeline is not applied.
func (d *Daemon) Push(ctx context.Context, text string) error {
	var werr error
	err := d.do(ctx, func(ctx context.Context) {
		logging.Info("writing clipboard from bridge", "event", "clipboard", "text_len", len(text))
		if werr = d.write(ctx, text, ""); werr != nil {
			return
		}
		d.broadcast(text, "")
	})
	if err != nil {
		return err
	}
	return werr
}

// GuardState reports the guard state as seen by the coordinator.
func (d *Daemon) GuardState(ctx context.Context) (syncTypes.GuardState, error) {
	var state syncTypes.GuardState
	err := d.do(ctx, func(context.Context) {
		state = d.guard.State()
	})
	return state, err
}

func (d *Daemon) tick(ctx context.Context) {
	if d.guard.Suppressed() {
		return
	}

	current := d.clip.Read(ctx)

	if d.guard.Pending() {
		if d.guard.Confirm(current) {
			d.last = current
			return
		}
		logging.Debug("clipboard differs from last write", "event", "guard")
	}

	if current.Text == "" || current.Equal(d.last) {
		return
	}
	d.last = current

	logging.Info("new clipboard content",
		"event", "clipboard",
		"text_len", len(current.Text),
		"has_html", current.HTML != "",
	)

	app := d.clip.ActiveApp(ctx)
	appChanged := app != d.lastApp
	d.lastApp = app

	if appChanged {
		logging.Info("active app changed", "event", "clipboard", "app", app)
		if d.cached != nil && d.isCachedContent(current) {
			d.inject(ctx, app, *d.cached)
			return
		}
	}

	result := transform.Process(current.Text, current.HTML, app)
	if result.Changed || result.Markdown != "" {
		cached := result
		d.cached = &cached
	}

	if result.Changed {
		reason := result.SkipReason
		if reason == "" {
			reason = "transformed"
		}
		logging.Info("applying transformation", "event", "transform", "reason", reason, "app", app)
		d.inject(ctx, app, result)
		d.broadcast(result.Text, result.HTML)
		return
	}

	if result.SkipReason != "" {
		logging.Info("transformation skipped", "event", "transform", "reason", result.SkipReason)
	}
	d.broadcast(current.Text, current.HTML)
}

// isCachedContent reports whether current carries the cached result, in any
// of the flavors it may have been injected with.
func (d *Daemon) isCachedContent(current clipboard.Snapshot) bool {
	c := d.cached
	return current.Text == c.Text || (c.Markdown != "" && current.Text == c.Markdown)
}

func (d *Daemon) isMarkdownTarget(app string) bool {
	if app == "" {
		return false
	}
	for _, m := range d.cfg.MarkdownApps {
		if strings.Contains(app, m) {
			return true
		}
	}
	return false
}

// inject writes result in the flavor the target application prefers.
func (d *Daemon) inject(ctx context.Context, app string, result transform.Result) {
	text := result.Text
	if d.isMarkdownTarget(app) && result.Markdown != "" {
		text = result.Markdown
	}
	d.write(ctx, text, result.HTML) //nolint:errcheck
}

// write is the guarded local write path. The guard records what the OS
// reports back, since some backends normalize content on write.
func (d *Daemon) write(ctx context.Context, text, html string) error {
	if err := d.clip.Write(ctx, text, html); err != nil {
		return err
	}

	observed := d.clip.Read(ctx)
	if observed.IsEmpty() {
		observed = clipboard.Snapshot{Text: text, HTML: html}
	}
	d.guard.BeginWrite(observed)
	d.last = observed
	return nil
}

func (d *Daemon) applyRemote(ctx context.Context, p syncTypes.Payload) {
	html := p.HTMLString()
	if p.Text == "" && html == "" {
		return
	}

	logging.Info("applying clipboard from peer",
		"event", "sync",
		"text_len", len(p.Text),
		"has_html", html != "",
	)

	d.guard.Suppress()
	if err := d.clip.Write(ctx, p.Text, html); err != nil {
		return
	}
	d.last = d.clip.Read(ctx)
}

func (d *Daemon) broadcast(text, html string) {
	if d.mesh == nil {
		return
	}
	if err := d.mesh.Broadcast(text, html); err != nil {
		logging.Warn("broadcast failed", "event", "sync", "error", err)
	}
}
