package store

import (
	"errors"
	"time"

	"wacast/internal/domain"
)

var ErrNotFound = errors.New("broadcast not found")

// Broadcast is the persisted header row for one broadcast request.
type Broadcast struct {
	ID            string
	State         string
	Message       string
	AttachmentURL string
	Total         int
	SentCount     int
	FailedCount   int
	InputErrors   []string
	Aborted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type BroadcastInsert struct {
	ID            string
	Message       string
	AttachmentURL string
	Recipients    []domain.Recipient
	InputErrors   []string
	State         string
	Now           time.Time
}

type BroadcastForWorker struct {
	Message       string
	AttachmentURL string
	State         string
	Recipients    []domain.Recipient
	InputErrors   []string
}

type StateUpdate struct {
	ID    string
	State string
	Now   time.Time
}

type RecipientOutcomeUpdate struct {
	BroadcastID  string
	Seq          int
	Status       string
	ChannelMsgID string
	ErrorDetail  string
	Now          time.Time
}

type FinishUpdate struct {
	ID          string
	State       string
	SentCount   int
	FailedCount int
	Aborted     bool
	Now         time.Time
}

// BroadcastSummary is what the read API returns: the header plus the
// per-recipient outcomes recorded so far.
type BroadcastSummary struct {
	Broadcast Broadcast
	Outcomes  []domain.SendOutcome
}
