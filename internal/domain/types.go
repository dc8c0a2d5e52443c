package domain

import (
	"errors"
	"strings"
	"time"
)

type BroadcastState string

const (
	StateQueued    BroadcastState = "queued"
	StateRunning   BroadcastState = "running"
	StateCompleted BroadcastState = "completed"
	StateAborted   BroadcastState = "aborted"
)

type SendStatus string

const (
	StatusSent   SendStatus = "sent"
	StatusFailed SendStatus = "failed"
)

// Recipient is one resolved target of a broadcast run. CanonicalAddress is
// always set by the time a Recipient reaches dispatch; rows that fail
// normalization become input errors instead.
type Recipient struct {
	RawAddress       string            `json:"rawAddress"`
	CanonicalAddress string            `json:"canonicalAddress"`
	DisplayName      string            `json:"displayName,omitempty"`
	RenderedMessage  string            `json:"renderedMessage"`
	SourceRow        map[string]string `json:"sourceRow,omitempty"`
}

// AttachmentRef points at a media file sent alongside the message body.
type AttachmentRef struct {
	URL string `json:"url"`
}

type SendOutcome struct {
	Recipient   string     `json:"recipient"` // raw address as supplied
	Status      SendStatus `json:"status"`
	MessageID   string     `json:"messageId,omitempty"`
	ErrorDetail string     `json:"errorDetail,omitempty"`
}

// BroadcastReport aggregates one run. For a completed run
// SentCount+FailedCount == TotalRecipients == len(Outcomes); an aborted run
// carries fewer outcomes than TotalRecipients.
type BroadcastReport struct {
	TotalRecipients int           `json:"totalRecipients"`
	SentCount       int           `json:"sentCount"`
	FailedCount     int           `json:"failedCount"`
	InputErrors     []string      `json:"inputErrors,omitempty"`
	Outcomes        []SendOutcome `json:"outcomes"`
	Aborted         bool          `json:"aborted,omitempty"`
}

// MessageLogEntry is the persisted record of a successfully sent message.
type MessageLogEntry struct {
	ID               string    `json:"id"`
	BroadcastID      string    `json:"broadcastId,omitempty"`
	To               string    `json:"to"`
	Body             string    `json:"body"`
	AttachmentURL    string    `json:"attachmentUrl,omitempty"`
	ChannelMessageID string    `json:"channelMessageId"`
	SentAt           time.Time `json:"sentAt"`
}

// BroadcastRequest is the API-level payload: either a direct phone list or
// tabular rows, plus the message template.
type BroadcastRequest struct {
	Phones        []string            `json:"phones,omitempty"`
	Rows          []map[string]string `json:"rows,omitempty"`
	Message       string              `json:"message"`
	AttachmentURL string              `json:"attachmentUrl,omitempty"`
}

var (
	ErrMissingMessage    = errors.New("missing message template")
	ErrMissingRecipients = errors.New("missing phones or rows")
)

func (r BroadcastRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrMissingMessage
	}
	if len(r.Phones) == 0 && len(r.Rows) == 0 {
		return ErrMissingRecipients
	}
	return nil
}

type CreateResponse struct {
	BroadcastID string   `json:"broadcastId"`
	State       string   `json:"state"`
	Total       int      `json:"total"`
	InputErrors []string `json:"inputErrors,omitempty"`
}
