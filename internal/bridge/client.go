package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrDaemonUnreachable is returned when no daemon answers on the bridge
// address.
var ErrDaemonUnreachable = errors.New("quark daemon unreachable")

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient talks to the bridge at addr, given as host:port or a URL.
func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimSuffix(addr, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) GetClipboard(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/clipboard", nil)
	if err != nil {
		return "", err
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	return body.Text, nil
}

func (c *Client) SetClipboard(ctx context.Context, text string) error {
	jsonData, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal clipboard data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/clipboard", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.do(req, &body); err != nil {
		return err
	}
	if !body.Success {
		return fmt.Errorf("daemon rejected clipboard write: %s", body.Error)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}
	return nil
}
