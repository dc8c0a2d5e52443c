// Package channel abstracts the session-based messaging client the
// broadcast engine sends through. The session is a single exclusively-owned
// resource: it does not tolerate concurrent sends, and it can silently drop
// mid-run, which is why every send goes through the Guard first.
package channel

import (
	"context"
	"fmt"

	"wacast/internal/domain"
)

// Receipt is what the channel returns for an accepted message.
type Receipt struct {
	MessageID string `json:"messageId"`
}

// Session is the external messaging client. Initialize is idempotent and
// asynchronous: readiness may arrive some time after it returns, so callers
// poll IsReady (see Guard).
type Session interface {
	IsReady(ctx context.Context) bool
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
	Send(ctx context.Context, address, body string, attachment *domain.AttachmentRef) (Receipt, error)
}

// SendError is a transport or session failure for one send attempt.
type SendError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SendError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("channel send failed (status %d): %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return "channel send failed: " + e.Err.Error()
	default:
		return "channel send failed"
	}
}

func (e *SendError) Unwrap() error { return e.Err }
