package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wacast/internal/broadcast"
	"wacast/internal/channel"
	"wacast/internal/domain"
	"wacast/internal/phone"
	"wacast/internal/resolver"
	"wacast/internal/store"
)

type fakeStore struct {
	inserted  *store.BroadcastInsert
	states    []store.StateUpdate
	outcomes  []store.RecipientOutcomeUpdate
	finished  *store.FinishUpdate
	forWorker store.BroadcastForWorker
}

func (f *fakeStore) InsertBroadcast(_ context.Context, in store.BroadcastInsert) error {
	f.inserted = &in
	return nil
}

func (f *fakeStore) GetBroadcastForWorker(context.Context, string) (store.BroadcastForWorker, error) {
	return f.forWorker, nil
}

func (f *fakeStore) MarkBroadcastState(_ context.Context, in store.StateUpdate) error {
	f.states = append(f.states, in)
	return nil
}

func (f *fakeStore) SetRecipientOutcome(_ context.Context, in store.RecipientOutcomeUpdate) error {
	f.outcomes = append(f.outcomes, in)
	return nil
}

func (f *fakeStore) FinishBroadcast(_ context.Context, in store.FinishUpdate) error {
	f.finished = &in
	return nil
}

func (f *fakeStore) GetBroadcast(context.Context, string) (store.BroadcastSummary, error) {
	return store.BroadcastSummary{}, store.ErrNotFound
}

type fakeQueue struct {
	enqueued []string
	fail     error
}

func (f *fakeQueue) EnqueueBroadcast(_ context.Context, id string) error {
	if f.fail != nil {
		return f.fail
	}
	f.enqueued = append(f.enqueued, id)
	return nil
}

type readySession struct {
	sends int
}

func (s *readySession) IsReady(context.Context) bool      { return true }
func (s *readySession) Initialize(context.Context) error  { return nil }
func (s *readySession) Destroy(context.Context) error     { return nil }
func (s *readySession) Send(_ context.Context, address, _ string, _ *domain.AttachmentRef) (channel.Receipt, error) {
	s.sends++
	return channel.Receipt{MessageID: "wamid-" + address}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestService(st Store, q Queue, sess channel.Session) *BroadcastService {
	g := channel.NewGuard(time.Millisecond, time.Millisecond)
	return &BroadcastService{
		Store:    st,
		Queue:    q,
		Resolver: resolver.New(phone.New("57", "@c.us")),
		Runner: &broadcast.Runner{
			Dispatcher: &broadcast.Dispatcher{Guard: g, MaxRetries: 3, Sleep: noSleep},
			Guard:      g,
			BatchSize:  5,
			Sleep:      noSleep,
		},
		Session: sess,
	}
}

func TestPrepareBroadcastPersistsAndEnqueues(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{}
	svc := newTestService(st, q, &readySession{})

	resp, err := svc.PrepareBroadcast(context.Background(), domain.BroadcastRequest{
		Phones:  []string{"3001234567", "", "3107654321"},
		Message: "hola",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if resp.State != "queued" || resp.Total != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.InputErrors) != 1 {
		t.Fatalf("input errors = %v", resp.InputErrors)
	}
	if st.inserted == nil || len(st.inserted.Recipients) != 2 {
		t.Fatalf("insert missing or wrong: %+v", st.inserted)
	}
	if len(q.enqueued) != 1 || q.enqueued[0] != resp.BroadcastID {
		t.Fatalf("enqueued = %v, want [%s]", q.enqueued, resp.BroadcastID)
	}
}

func TestPrepareBroadcastRejectsEmptyMessage(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeQueue{}, &readySession{})

	_, err := svc.PrepareBroadcast(context.Background(), domain.BroadcastRequest{Phones: []string{"3001234567"}})
	if !errors.Is(err, domain.ErrMissingMessage) {
		t.Fatalf("err = %v, want ErrMissingMessage", err)
	}
}

func TestPrepareBroadcastEnqueueFailureAborts(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{fail: errors.New("sqs down")}
	svc := newTestService(st, q, &readySession{})

	_, err := svc.PrepareBroadcast(context.Background(), domain.BroadcastRequest{
		Phones:  []string{"3001234567"},
		Message: "hola",
	})
	if err == nil {
		t.Fatalf("expected enqueue error")
	}
	if len(st.states) != 1 || st.states[0].State != "aborted" {
		t.Fatalf("states = %+v, want aborted mark", st.states)
	}
}

func TestExecuteBroadcastRunsAndPersistsOutcomes(t *testing.T) {
	st := &fakeStore{forWorker: store.BroadcastForWorker{
		Message: "hola {nombre}",
		State:   "queued",
		Recipients: []domain.Recipient{
			{RawAddress: "3001234567", CanonicalAddress: "573001234567@c.us", RenderedMessage: "hola Ana"},
			{RawAddress: "3107654321", CanonicalAddress: "573107654321@c.us", RenderedMessage: "hola Luis"},
		},
	}}
	sess := &readySession{}
	svc := newTestService(st, &fakeQueue{}, sess)

	if err := svc.ExecuteBroadcast(context.Background(), "brc_x"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if sess.sends != 2 {
		t.Fatalf("sends = %d, want 2", sess.sends)
	}
	if len(st.states) != 1 || st.states[0].State != "running" {
		t.Fatalf("states = %+v, want running mark", st.states)
	}
	if len(st.outcomes) != 2 {
		t.Fatalf("outcomes persisted = %d, want 2", len(st.outcomes))
	}
	if st.outcomes[0].Status != "sent" || st.outcomes[0].ChannelMsgID == "" {
		t.Fatalf("outcome[0] = %+v", st.outcomes[0])
	}
	if st.finished == nil || st.finished.State != "completed" || st.finished.SentCount != 2 {
		t.Fatalf("finish = %+v", st.finished)
	}
}

func TestExecuteBroadcastSkipsFinishedRuns(t *testing.T) {
	st := &fakeStore{forWorker: store.BroadcastForWorker{State: "completed"}}
	sess := &readySession{}
	svc := newTestService(st, &fakeQueue{}, sess)

	if err := svc.ExecuteBroadcast(context.Background(), "brc_x"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sess.sends != 0 {
		t.Fatalf("redelivered job resent messages")
	}
	if st.finished != nil {
		t.Fatalf("finish update on skipped run")
	}
}

func TestRunBroadcastInProcess(t *testing.T) {
	sess := &readySession{}
	svc := newTestService(&fakeStore{}, &fakeQueue{}, sess)

	report, err := svc.RunBroadcast(context.Background(), domain.BroadcastRequest{
		Rows: []map[string]string{
			{"Nombre": "Ana", "Telefono": "3001234567"},
			{"Nombre": "Luis", "Telefono": "3107654321"},
		},
		Message: "hola {nombre}",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.SentCount != 2 || report.FailedCount != 0 {
		t.Fatalf("report = %+v", report)
	}
	if sess.sends != 2 {
		t.Fatalf("sends = %d, want 2", sess.sends)
	}
}
