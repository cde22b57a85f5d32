package clipboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/victorvcruz/quark/internal/logging"
)

// ErrUnavailable is returned when no clipboard backend exists for the
// current platform or its command-line utility is missing.
var ErrUnavailable = errors.New("clipboard unavailable")

// Snapshot is one observed or written clipboard state. Absent flavors are
// empty strings, never missing values.
type Snapshot struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Equal reports whether both flavors match.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Text == o.Text && s.HTML == o.HTML
}

// IsEmpty reports whether neither flavor holds content.
func (s Snapshot) IsEmpty() bool {
	return s.Text == "" && s.HTML == ""
}

// Provider is the OS-specific clipboard access layer.
type Provider interface {
	Read(ctx context.Context) (Snapshot, error)
	WriteText(ctx context.Context, text string) error
	WriteHTML(ctx context.Context, html, text string) error
	ActiveApp(ctx context.Context) (string, error)
}

// Manager wraps a Provider so that environment failures degrade to empty
// content for the current cycle instead of surfacing to the caller.
type Manager struct {
	provider Provider
}

func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider}
}

// Read returns the current snapshot, or an empty one if the provider fails.
func (m *Manager) Read(ctx context.Context) Snapshot {
	snap, err := m.provider.Read(ctx)
	if err != nil {
		logging.Warn("clipboard read failed", "error", err)
		return Snapshot{}
	}
	return snap
}

// ActiveApp returns the foreground application name, or "" when unknown.
func (m *Manager) ActiveApp(ctx context.Context) string {
	app, err := m.provider.ActiveApp(ctx)
	if err != nil {
		logging.Debug("active app query failed", "error", err)
		return ""
	}
	return app
}

// Write stores text, and html when non-empty, as the new clipboard content.
func (m *Manager) Write(ctx context.Context, text, html string) error {
	var err error
	if html != "" {
		err = m.provider.WriteHTML(ctx, html, text)
	} else {
		err = m.provider.WriteText(ctx, text)
	}
	if err != nil {
		logging.Warn("clipboard write failed", "error", err, "has_html", html != "")
		return fmt.Errorf("failed to set clipboard content: %w", err)
	}
	return nil
}
