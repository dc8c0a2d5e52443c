package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDs are sortable, which keeps DB indexes and log files in send order.

func NewBroadcastID() string {
	return "brc_" + ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

func NewLogEntryID() string {
	return "log_" + ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
