// Package broadcast implements the dispatch engine: per-recipient retried
// sends and the batched, paced runner that drives a whole broadcast.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"wacast/internal/channel"
	"wacast/internal/domain"
	"wacast/internal/observability"
)

const (
	DefaultMaxRetries = 3
	maxBackoff        = 10 * time.Second
)

var errSessionUnavailable = errors.New("session unavailable")

// Dispatcher sends one message with bounded retries and exponential backoff.
// Limiter and Breaker are optional; both are nil-safe.
type Dispatcher struct {
	Guard       *channel.Guard
	Limiter     *rate.Limiter
	Breaker     *gobreaker.CircuitBreaker
	MaxRetries  int
	SendTimeout time.Duration

	// Sleep is swappable for tests; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// SendWithRetry attempts delivery up to MaxRetries times. A failed guard
// check counts as that attempt's error and the loop continues into backoff:
// the session may come back on a later attempt. Transport errors never
// escape as errors; they always resolve to a Failed outcome.
func (d *Dispatcher) SendWithRetry(ctx context.Context, s channel.Session, rcpt domain.Recipient, attachment *domain.AttachmentRef) domain.SendOutcome {
	maxRetries := d.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		rcptID, err := d.attempt(ctx, s, rcpt, attachment)
		if err == nil {
			observability.SendAttempts.WithLabelValues("ok").Inc()
			return domain.SendOutcome{
				Recipient: rcpt.RawAddress,
				Status:    domain.StatusSent,
				MessageID: rcptID,
			}
		}
		lastErr = err
		observability.SendAttempts.WithLabelValues("error").Inc()

		if attempt < maxRetries {
			if serr := d.sleep(ctx, backoff(attempt)); serr != nil {
				lastErr = serr
				break
			}
		}
	}

	return domain.SendOutcome{
		Recipient:   rcpt.RawAddress,
		Status:      domain.StatusFailed,
		ErrorDetail: fmt.Sprintf("send failed after %d attempts: %v", maxRetries, lastErr),
	}
}

func (d *Dispatcher) attempt(ctx context.Context, s channel.Session, rcpt domain.Recipient, attachment *domain.AttachmentRef) (string, error) {
	if d.Guard != nil && !d.Guard.EnsureReady(ctx, s) {
		return "", errSessionUnavailable
	}

	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	sendCtx := ctx
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}

	start := time.Now()
	receipt, err := d.send(sendCtx, s, rcpt.CanonicalAddress, rcpt.RenderedMessage, attachment)
	observability.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return receipt.MessageID, nil
}

func (d *Dispatcher) send(ctx context.Context, s channel.Session, address, body string, attachment *domain.AttachmentRef) (channel.Receipt, error) {
	if d.Breaker == nil {
		return s.Send(ctx, address, body, attachment)
	}
	res, err := d.Breaker.Execute(func() (any, error) {
		return s.Send(ctx, address, body, attachment)
	})
	if err != nil {
		return channel.Receipt{}, err
	}
	return res.(channel.Receipt), nil
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return sleepCtx(ctx, dur)
}

// backoff is min(1s * 2^attempt, 10s) for a 1-based attempt counter.
func backoff(attempt int) time.Duration {
	dur := time.Second << attempt
	if dur > maxBackoff || dur <= 0 {
		return maxBackoff
	}
	return dur
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
