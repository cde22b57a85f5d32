package clipboard

import (
	"context"
	"sync"
)

// Memory is an in-process Provider. It backs tests and headless runs.
type Memory struct {
	mu       sync.Mutex
	snap     Snapshot
	app      string
	readErr  error
	writeErr error
	writes   []Snapshot
}

func NewMemory(initial Snapshot) *Memory {
	return &Memory{snap: initial}
}

// Set replaces the content as if another program had copied it.
func (m *Memory) Set(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
}

func (m *Memory) SetActiveApp(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.app = name
}

// FailReads makes subsequent reads return err; nil clears it.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// FailWrites makes subsequent writes return err; nil clears it.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Current returns the held snapshot without going through Read.
func (m *Memory) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Writes returns every snapshot written through the Provider methods.
func (m *Memory) Writes() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *Memory) Read(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return Snapshot{}, m.readErr
	}
	return m.snap, nil
}

func (m *Memory) WriteText(ctx context.Context, text string) error {
	return m.write(Snapshot{Text: text})
}

func (m *Memory) WriteHTML(ctx context.Context, html, text string) error {
	return m.write(Snapshot{Text: text, HTML: html})
}

func (m *Memory) write(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.snap = s
	m.writes = append(m.writes, s)
	return nil
}

func (m *Memory) ActiveApp(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.app, nil
}
