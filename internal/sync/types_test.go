package sync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMessageWireShape(t *testing.T) {
	data, err := json.Marshal(NewSyncMessage("node-a", "hi", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"CLIPBOARD_SYNC","originId":"node-a","payload":{"text":"hi","html":null}}`, string(data))

	data, err = json.Marshal(NewSyncMessage("node-a", "hi", "<b>hi</b>"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"CLIPBOARD_SYNC","originId":"node-a","payload":{"text":"hi","html":"<b>hi</b>"}}`, string(data))
}

func TestPayloadMissingHTML(t *testing.T) {
	var msg SyncMessage
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"CLIPBOARD_SYNC","originId":"b","payload":{"text":"x"}}`), &msg))
	assert.Equal(t, "", msg.Payload.HTMLString())
	assert.Equal(t, "x", msg.Payload.Text)
}

func TestNewNodeIDUnique(t *testing.T) {
	assert.NotEqual(t, NewNodeID(), NewNodeID())
	assert.Len(t, NewNodeID(), 36)
}
