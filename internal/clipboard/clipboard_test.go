package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEqual(t *testing.T) {
	a := Snapshot{Text: "x", HTML: "<b>x</b>"}
	assert.True(t, a.Equal(Snapshot{Text: "x", HTML: "<b>x</b>"}))
	assert.False(t, a.Equal(Snapshot{Text: "x"}))
	assert.True(t, Snapshot{}.IsEmpty())
	assert.False(t, a.IsEmpty())
}

func TestManagerReadFailureIsEmpty(t *testing.T) {
	mem := NewMemory(Snapshot{Text: "hello"})
	m := NewManager(mem)

	assert.Equal(t, Snapshot{Text: "hello"}, m.Read(context.Background()))

	mem.FailReads(errors.New("permission denied"))
	assert.Equal(t, Snapshot{}, m.Read(context.Background()))
}

func TestManagerWriteChoosesFlavor(t *testing.T) {
	mem := NewMemory(Snapshot{})
	m := NewManager(mem)
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "plain", ""))
	require.NoError(t, m.Write(ctx, "rich", "<b>rich</b>"))

	assert.Equal(t, []Snapshot{
		{Text: "plain"},
		{Text: "rich", HTML: "<b>rich</b>"},
	}, mem.Writes())
}

func TestManagerWriteFailureWrapped(t *testing.T) {
	mem := NewMemory(Snapshot{})
	mem.FailWrites(ErrUnavailable)
	m := NewManager(mem)

	err := m.Write(context.Background(), "x", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, mem.Writes())
}

func TestManagerActiveAppUnknown(t *testing.T) {
	mem := NewMemory(Snapshot{})
	mem.SetActiveApp("Obsidian")
	assert.Equal(t, "Obsidian", NewManager(mem).ActiveApp(context.Background()))
}
