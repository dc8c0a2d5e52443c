// Package msglog persists a per-message audit trail of everything the
// engine actually handed to the channel.
package msglog

import (
	"context"

	"wacast/internal/domain"
)

// Sink records sent messages. Append must tolerate being called mid-run;
// a sink failure never fails the broadcast, callers log and move on.
type Sink interface {
	Append(ctx context.Context, entry domain.MessageLogEntry) error
	Flush(ctx context.Context) error
}

// Discard is the no-op sink used when logging is disabled.
type Discard struct{}

func (Discard) Append(context.Context, domain.MessageLogEntry) error { return nil }
func (Discard) Flush(context.Context) error                         { return nil }
