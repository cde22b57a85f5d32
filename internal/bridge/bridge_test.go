package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClipboard struct {
	mu      sync.Mutex
	text    string
	pushed  []string
	readErr error
	pushErr error
}

func (f *fakeClipboard) ReadText(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.readErr
}

func (f *fakeClipboard) Push(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.text = text
	f.pushed = append(f.pushed, text)
	return nil
}

func newTestBridge(t *testing.T, clip *fakeClipboard) (*httptest.Server, *Client) {
	t.Helper()
	status := func(context.Context) (Status, error) {
		return Status{NodeID: "node-a", Peers: 2, Guard: "idle"}, nil
	}
	srv := httptest.NewServer(NewServer(clip, status).Handler())
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	clip := &fakeClipboard{text: "on the clipboard"}
	_, client := newTestBridge(t, clip)
	ctx := context.Background()

	text, err := client.GetClipboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "on the clipboard", text)

	require.NoError(t, client.SetClipboard(ctx, "from a tool"))
	assert.Equal(t, []string{"from a tool"}, clip.pushed)
}

func TestPostValidation(t *testing.T) {
	clip := &fakeClipboard{}
	srv, _ := newTestBridge(t, clip)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"missing text", `{}`, http.StatusBadRequest},
		{"empty text is a no-op", `{"text":""}`, http.StatusOK},
		{"valid", `{"text":"ok"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/clipboard", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close() //nolint:errcheck
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
	assert.Equal(t, []string{"ok"}, clip.pushed)
}

func TestPushFailureReported(t *testing.T) {
	clip := &fakeClipboard{pushErr: errors.New("no display")}
	_, client := newTestBridge(t, clip)

	err := client.SetClipboard(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestBridge(t, &fakeClipboard{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	NewServer(&fakeClipboard{}, func(context.Context) (Status, error) {
		return Status{NodeID: "node-a", Peers: 2, Guard: "idle"}, nil
	}).Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nodeId":"node-a","peers":2,"guard":"idle"}`, rec.Body.String())
}

func TestNonLoopbackRejected(t *testing.T) {
	h := NewServer(&fakeClipboard{}, nil).Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/clipboard", nil)
	req.RemoteAddr = "192.168.1.50:40000"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/clipboard", nil)
	req.RemoteAddr = "[::1]:40000"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/clipboard", nil)
	req.RemoteAddr = "127.0.0.1:1"
	NewServer(&fakeClipboard{}, nil).Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestClientDaemonUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient(addr).GetClipboard(context.Background())
	assert.ErrorIs(t, err, ErrDaemonUnreachable)
}

func TestNewClientAcceptsHostPort(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:14314", NewClient(DefaultAddr).baseURL)
	assert.Equal(t, "http://localhost:1", NewClient("http://localhost:1/").baseURL)
}

type fakeClient struct {
	text string
	err  error
	set  []string
}

func (f *fakeClient) GetClipboard(ctx context.Context) (string, error) { return f.text, f.err }

func (f *fakeClient) SetClipboard(ctx context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.set = append(f.set, text)
	return nil
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetClipboardTool(t *testing.T) {
	ctx := context.Background()

	res, err := NewGetClipboardTool(&fakeClient{text: "hi"}).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "hi", resultText(res))

	res, err = NewGetClipboardTool(&fakeClient{}).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Equal(t, "(Clipboard is empty)", resultText(res))

	res, err = NewGetClipboardTool(&fakeClient{err: ErrDaemonUnreachable}).Handle(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "quark run")
}

func TestSetClipboardTool(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	tool := NewSetClipboardTool(client)

	def := tool.Definition()
	assert.Equal(t, "set_clipboard", def.Name)
	assert.Contains(t, def.InputSchema.Required, "text")

	res, err := tool.Handle(ctx, makeReq(map[string]any{"text": "paste me"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"paste me"}, client.set)

	res, err = tool.Handle(ctx, makeReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMCPServerRegistersTools(t *testing.T) {
	assert.NotNil(t, NewMCPServer(&fakeClient{}, "test"))
	assert.Equal(t, "get_clipboard", NewGetClipboardTool(&fakeClient{}).Definition().Name)
}
