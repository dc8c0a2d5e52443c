package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"wacast/internal/domain"
)

// BridgeClient talks to a whatsapp-web bridge sidecar over HTTP. The bridge
// owns the QR pairing and persisted session; this client only drives
// readiness and sends.
type BridgeClient struct {
	BaseURL string
	HTTP    *http.Client
}

type statusResponse struct {
	Ready bool `json:"ready"`
}

type sendRequest struct {
	ChatID   string `json:"chatId"`
	Body     string `json:"body"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

type bridgeError struct {
	Error string `json:"error"`
}

func (c *BridgeClient) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *BridgeClient) IsReady(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/api/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return false
	}
	return st.Ready
}

// Initialize asks the bridge to start a session. The bridge answers
// immediately and emits readiness later; 409 means a session is already
// starting, which counts as success.
func (c *BridgeClient) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/api/session/start", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusConflict {
		return nil
	}
	return &SendError{StatusCode: resp.StatusCode, Message: readBridgeError(resp.Body)}
}

func (c *BridgeClient) Destroy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base()+"/api/session", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 404 means no session to tear down; that's fine.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return &SendError{StatusCode: resp.StatusCode, Message: readBridgeError(resp.Body)}
}

func (c *BridgeClient) Send(ctx context.Context, address, body string, attachment *domain.AttachmentRef) (Receipt, error) {
	payload := sendRequest{ChatID: address, Body: body}
	if attachment != nil {
		payload.MediaURL = attachment.URL
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/api/messages", bytes.NewReader(buf))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Receipt{}, &SendError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, &SendError{StatusCode: resp.StatusCode, Message: readBridgeError(resp.Body)}
	}

	var rcpt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&rcpt); err != nil {
		return Receipt{}, &SendError{Err: err}
	}
	if rcpt.MessageID == "" {
		return Receipt{}, &SendError{StatusCode: resp.StatusCode, Message: "bridge returned no message id"}
	}
	return rcpt, nil
}

func readBridgeError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var be bridgeError
	if err := json.Unmarshal(b, &be); err == nil && be.Error != "" {
		return be.Error
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		return s
	}
	return "bridge request failed"
}
