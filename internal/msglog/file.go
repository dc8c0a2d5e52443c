package msglog

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"wacast/internal/domain"
)

// FileSink appends JSON lines to a local file. Worker processes run one
// broadcast at a time, but the mutex keeps the sink safe regardless.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

func OpenFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Append(_ context.Context, entry domain.MessageLogEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.f.Write(b)
	return err
}

func (s *FileSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Sync()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
