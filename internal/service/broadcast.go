package service

import (
	"context"
	"sync"

	"wacast/internal/broadcast"
	"wacast/internal/channel"
	"wacast/internal/domain"
	"wacast/internal/observability"
	"wacast/internal/resolver"
	"wacast/internal/store"
	"wacast/internal/util"
)

type Store interface {
	InsertBroadcast(ctx context.Context, in store.BroadcastInsert) error
	GetBroadcastForWorker(ctx context.Context, id string) (store.BroadcastForWorker, error)
	MarkBroadcastState(ctx context.Context, in store.StateUpdate) error
	SetRecipientOutcome(ctx context.Context, in store.RecipientOutcomeUpdate) error
	FinishBroadcast(ctx context.Context, in store.FinishUpdate) error
	GetBroadcast(ctx context.Context, id string) (store.BroadcastSummary, error)
}

type Queue interface {
	EnqueueBroadcast(ctx context.Context, broadcastID string) error
}

// BroadcastService glues resolution, persistence, queueing and the runner.
// The mutex serializes ExecuteBroadcast: the channel session is one shared
// resource and does not tolerate interleaved runs.
type BroadcastService struct {
	Store    Store
	Queue    Queue
	Resolver *resolver.Resolver
	Runner   *broadcast.Runner
	Session  channel.Session

	mu sync.Mutex
}

// PrepareBroadcast validates and resolves the request, persists it, and
// enqueues the job for the worker. Rows that fail resolution are recorded
// as input errors, never enqueued.
func (s *BroadcastService) PrepareBroadcast(ctx context.Context, req domain.BroadcastRequest) (domain.CreateResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.CreateResponse{}, err
	}

	recipients, inputErrors := s.resolve(req)
	observability.InputErrors.Add(float64(len(inputErrors)))

	id := util.NewBroadcastID()
	now := util.NowUTC()
	err := s.Store.InsertBroadcast(ctx, store.BroadcastInsert{
		ID:            id,
		Message:       req.Message,
		AttachmentURL: req.AttachmentURL,
		Recipients:    recipients,
		InputErrors:   inputErrors,
		State:         string(domain.StateQueued),
		Now:           now,
	})
	if err != nil {
		return domain.CreateResponse{}, err
	}

	if err := s.Queue.EnqueueBroadcast(ctx, id); err != nil {
		_ = s.Store.MarkBroadcastState(ctx, store.StateUpdate{ID: id, State: string(domain.StateAborted), Now: util.NowUTC()})
		return domain.CreateResponse{}, err
	}

	return domain.CreateResponse{
		BroadcastID: id,
		State:       string(domain.StateQueued),
		Total:       len(recipients),
		InputErrors: inputErrors,
	}, nil
}

// ExecuteBroadcast is the worker entry point. Redelivered jobs for an
// already-finished broadcast are acknowledged without resending.
func (s *BroadcastService) ExecuteBroadcast(ctx context.Context, broadcastID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.Store.GetBroadcastForWorker(ctx, broadcastID)
	if err != nil {
		return err
	}
	switch b.State {
	case string(domain.StateCompleted), string(domain.StateAborted):
		return nil
	}

	now := util.NowUTC()
	if err := s.Store.MarkBroadcastState(ctx, store.StateUpdate{ID: broadcastID, State: string(domain.StateRunning), Now: now}); err != nil {
		return err
	}

	var attachment *domain.AttachmentRef
	if b.AttachmentURL != "" {
		attachment = &domain.AttachmentRef{URL: b.AttachmentURL}
	}

	report := s.Runner.Run(ctx, s.Session, broadcastID, b.Recipients, attachment, b.InputErrors)

	for i, o := range report.Outcomes {
		if err := s.Store.SetRecipientOutcome(ctx, store.RecipientOutcomeUpdate{
			BroadcastID:  broadcastID,
			Seq:          i,
			Status:       string(o.Status),
			ChannelMsgID: o.MessageID,
			ErrorDetail:  o.ErrorDetail,
			Now:          util.NowUTC(),
		}); err != nil {
			return err
		}
	}

	state := domain.StateCompleted
	if report.Aborted {
		state = domain.StateAborted
	}
	return s.Store.FinishBroadcast(ctx, store.FinishUpdate{
		ID:          broadcastID,
		State:       string(state),
		SentCount:   report.SentCount,
		FailedCount: report.FailedCount,
		Aborted:     report.Aborted,
		Now:         util.NowUTC(),
	})
}

// RunBroadcast resolves and dispatches in-process, skipping store and
// queue. Used by one-shot tooling.
func (s *BroadcastService) RunBroadcast(ctx context.Context, req domain.BroadcastRequest) (domain.BroadcastReport, error) {
	if err := req.Validate(); err != nil {
		return domain.BroadcastReport{}, err
	}

	recipients, inputErrors := s.resolve(req)
	observability.InputErrors.Add(float64(len(inputErrors)))

	var attachment *domain.AttachmentRef
	if req.AttachmentURL != "" {
		attachment = &domain.AttachmentRef{URL: req.AttachmentURL}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Runner.Run(ctx, s.Session, util.NewBroadcastID(), recipients, attachment, inputErrors), nil
}

func (s *BroadcastService) GetBroadcast(ctx context.Context, id string) (store.BroadcastSummary, error) {
	return s.Store.GetBroadcast(ctx, id)
}

func (s *BroadcastService) resolve(req domain.BroadcastRequest) ([]domain.Recipient, []string) {
	var recipients []domain.Recipient
	var inputErrors []string

	if len(req.Phones) > 0 {
		rs, errs := s.Resolver.FromPhones(req.Phones, req.Message)
		recipients = append(recipients, rs...)
		inputErrors = append(inputErrors, errs...)
	}
	if len(req.Rows) > 0 {
		rs, errs := s.Resolver.Resolve(req.Rows, req.Message)
		recipients = append(recipients, rs...)
		inputErrors = append(inputErrors, errs...)
	}
	return recipients, inputErrors
}
