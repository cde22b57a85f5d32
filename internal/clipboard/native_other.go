//go:build !linux && !darwin && !windows

package clipboard

import "fmt"

// NewSystemProvider returns the clipboard backend for this platform.
func NewSystemProvider() (Provider, error) {
	return nil, fmt.Errorf("no clipboard backend for this platform: %w", ErrUnavailable)
}
