package broadcast

import (
	"context"
	"log/slog"
	"time"

	"wacast/internal/channel"
	"wacast/internal/domain"
	"wacast/internal/msglog"
	"wacast/internal/observability"
	"wacast/internal/util"
)

const (
	DefaultBatchSize    = 5
	DefaultMessageDelay = 1 * time.Second
	DefaultBatchDelay   = 3 * time.Second
)

// Runner drives a whole broadcast: batches of sends with pacing between
// messages and between batches, and a guard check before each batch after
// the first. A guard failure between batches aborts the remainder of the
// run; outcomes already recorded are kept.
type Runner struct {
	Dispatcher *Dispatcher
	Guard      *channel.Guard

	BatchSize    int
	MessageDelay time.Duration
	BatchDelay   time.Duration

	// Log receives an entry per sent message. Nil means no audit trail.
	Log msglog.Sink

	// Sleep is swappable for tests; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run dispatches every recipient and returns the aggregated report. Input
// errors from resolution are carried through untouched so the report covers
// the whole request, not just the dispatchable part. Run never returns an
// error: per-recipient failures land in Outcomes and a dead session mid-run
// flips Aborted.
func (r *Runner) Run(ctx context.Context, s channel.Session, broadcastID string, recipients []domain.Recipient, attachment *domain.AttachmentRef, inputErrors []string) domain.BroadcastReport {
	batchSize := r.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	report := domain.BroadcastReport{
		TotalRecipients: len(recipients),
		InputErrors:     inputErrors,
	}
	log := slog.With("broadcast_id", broadcastID)
	log.Info("broadcast starting", "recipients", len(recipients), "input_errors", len(inputErrors), "batch_size", batchSize)

	for start := 0; start < len(recipients); start += batchSize {
		if start > 0 {
			if err := r.sleep(ctx, r.batchDelay()); err != nil {
				log.Warn("broadcast canceled between batches", "err", err)
				report.Aborted = true
				break
			}
			if !r.Guard.EnsureReady(ctx, s) {
				log.Error("session unavailable between batches, aborting", "dispatched", len(report.Outcomes))
				report.Aborted = true
				break
			}
		}

		end := start + batchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		canceled := false
		for i, rcpt := range recipients[start:end] {
			if i > 0 {
				if err := r.sleep(ctx, r.messageDelay()); err != nil {
					canceled = true
					break
				}
			}
			if ctx.Err() != nil {
				canceled = true
				break
			}

			outcome := r.Dispatcher.SendWithRetry(ctx, s, rcpt, attachment)
			report.Outcomes = append(report.Outcomes, outcome)
			observability.SendOutcomes.WithLabelValues(string(outcome.Status)).Inc()

			if outcome.Status == domain.StatusSent {
				report.SentCount++
				r.appendLog(ctx, log, broadcastID, rcpt, attachment, outcome)
			} else {
				report.FailedCount++
				log.Warn("recipient failed", "recipient", outcome.Recipient, "detail", outcome.ErrorDetail)
			}
		}
		if canceled {
			log.Warn("broadcast canceled mid-batch", "dispatched", len(report.Outcomes))
			report.Aborted = true
			break
		}
	}

	if r.Log != nil {
		if err := r.Log.Flush(ctx); err != nil {
			log.Warn("message log flush failed", "err", err)
			observability.MessageLogErrors.Inc()
		}
	}

	result := "completed"
	if report.Aborted {
		result = "aborted"
	}
	observability.BroadcastRuns.WithLabelValues(result).Inc()
	log.Info("broadcast finished", "result", result, "sent", report.SentCount, "failed", report.FailedCount)
	return report
}

func (r *Runner) appendLog(ctx context.Context, log *slog.Logger, broadcastID string, rcpt domain.Recipient, attachment *domain.AttachmentRef, outcome domain.SendOutcome) {
	if r.Log == nil {
		return
	}
	entry := domain.MessageLogEntry{
		ID:               util.NewLogEntryID(),
		BroadcastID:      broadcastID,
		To:               rcpt.CanonicalAddress,
		Body:             rcpt.RenderedMessage,
		ChannelMessageID: outcome.MessageID,
		SentAt:           util.NowUTC(),
	}
	if attachment != nil {
		entry.AttachmentURL = attachment.URL
	}
	if err := r.Log.Append(ctx, entry); err != nil {
		log.Warn("message log append failed", "err", err)
		observability.MessageLogErrors.Inc()
	}
}

func (r *Runner) messageDelay() time.Duration {
	if r.MessageDelay > 0 {
		return r.MessageDelay
	}
	return DefaultMessageDelay
}

func (r *Runner) batchDelay() time.Duration {
	if r.BatchDelay > 0 {
		return r.BatchDelay
	}
	return DefaultBatchDelay
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}
