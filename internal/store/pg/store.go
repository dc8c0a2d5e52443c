package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wacast/internal/domain"
	"wacast/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// InsertBroadcast writes the header and every resolved recipient in one
// transaction. Recipient seq preserves request order, which is also send
// order.
func (s *Store) InsertBroadcast(ctx context.Context, in store.BroadcastInsert) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	inputErrs, _ := json.Marshal(in.InputErrors)
	_, err = tx.Exec(ctx, `
		INSERT INTO broadcasts (id, state, message, attachment_url, total, input_errors_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
	`, in.ID, in.State, in.Message, nullIfEmpty(in.AttachmentURL), len(in.Recipients), inputErrs, in.Now)
	if err != nil {
		return err
	}

	for i, r := range in.Recipients {
		row, _ := json.Marshal(r.SourceRow)
		_, err = tx.Exec(ctx, `
			INSERT INTO broadcast_recipients (broadcast_id, seq, raw_address, canonical_address, display_name, rendered_message, source_row_json)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, in.ID, i, r.RawAddress, r.CanonicalAddress, nullIfEmpty(r.DisplayName), r.RenderedMessage, row)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetBroadcastForWorker(ctx context.Context, id string) (store.BroadcastForWorker, error) {
	var out store.BroadcastForWorker
	var inputErrs []byte
	row := s.DB.QueryRow(ctx, `
		SELECT message, COALESCE(attachment_url,''), state, input_errors_json FROM broadcasts WHERE id=$1
	`, id)
	if err := row.Scan(&out.Message, &out.AttachmentURL, &out.State, &inputErrs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.BroadcastForWorker{}, store.ErrNotFound
		}
		return store.BroadcastForWorker{}, err
	}
	_ = json.Unmarshal(inputErrs, &out.InputErrors)

	rows, err := s.DB.Query(ctx, `
		SELECT raw_address, canonical_address, COALESCE(display_name,''), rendered_message, source_row_json
		FROM broadcast_recipients WHERE broadcast_id=$1 ORDER BY seq
	`, id)
	if err != nil {
		return store.BroadcastForWorker{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.Recipient
		var srcRow []byte
		if err := rows.Scan(&r.RawAddress, &r.CanonicalAddress, &r.DisplayName, &r.RenderedMessage, &srcRow); err != nil {
			return store.BroadcastForWorker{}, err
		}
		_ = json.Unmarshal(srcRow, &r.SourceRow)
		out.Recipients = append(out.Recipients, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkBroadcastState(ctx context.Context, in store.StateUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE broadcasts SET state=$2, updated_at=$3 WHERE id=$1
	`, in.ID, in.State, in.Now)
	return err
}

func (s *Store) SetRecipientOutcome(ctx context.Context, in store.RecipientOutcomeUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE broadcast_recipients SET status=$3, channel_msg_id=$4, error_detail=$5, updated_at=$6
		WHERE broadcast_id=$1 AND seq=$2
	`, in.BroadcastID, in.Seq, in.Status, nullIfEmpty(in.ChannelMsgID), nullIfEmpty(in.ErrorDetail), in.Now)
	return err
}

func (s *Store) FinishBroadcast(ctx context.Context, in store.FinishUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE broadcasts SET state=$2, sent_count=$3, failed_count=$4, aborted=$5, updated_at=$6 WHERE id=$1
	`, in.ID, in.State, in.SentCount, in.FailedCount, in.Aborted, in.Now)
	return err
}

func (s *Store) GetBroadcast(ctx context.Context, id string) (store.BroadcastSummary, error) {
	var out store.BroadcastSummary
	var inputErrs []byte
	row := s.DB.QueryRow(ctx, `
		SELECT id, state, message, COALESCE(attachment_url,''), total, sent_count, failed_count, input_errors_json, aborted, created_at, updated_at
		FROM broadcasts WHERE id=$1
	`, id)
	b := &out.Broadcast
	err := row.Scan(&b.ID, &b.State, &b.Message, &b.AttachmentURL, &b.Total, &b.SentCount, &b.FailedCount, &inputErrs, &b.Aborted, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.BroadcastSummary{}, store.ErrNotFound
		}
		return store.BroadcastSummary{}, err
	}
	_ = json.Unmarshal(inputErrs, &b.InputErrors)

	rows, err := s.DB.Query(ctx, `
		SELECT raw_address, COALESCE(status,''), COALESCE(channel_msg_id,''), COALESCE(error_detail,'')
		FROM broadcast_recipients WHERE broadcast_id=$1 AND status IS NOT NULL ORDER BY seq
	`, id)
	if err != nil {
		return store.BroadcastSummary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.SendOutcome
		var status string
		if err := rows.Scan(&o.Recipient, &status, &o.MessageID, &o.ErrorDetail); err != nil {
			return store.BroadcastSummary{}, err
		}
		o.Status = domain.SendStatus(status)
		out.Outcomes = append(out.Outcomes, o)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
