package msglog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"wacast/internal/domain"
)

// PGSink writes the audit trail into message_log. Rows are visible as soon
// as Append commits, so Flush has nothing left to do.
type PGSink struct {
	DB *pgxpool.Pool
}

func (s *PGSink) Append(ctx context.Context, e domain.MessageLogEntry) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO message_log (id, broadcast_id, to_address, body, attachment_url, channel_msg_id, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.BroadcastID, e.To, e.Body, nullIfEmpty(e.AttachmentURL), e.ChannelMessageID, e.SentAt)
	return err
}

func (s *PGSink) Flush(context.Context) error { return nil }

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
