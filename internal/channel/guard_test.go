package channel

import (
	"context"
	"testing"
	"time"

	"wacast/internal/domain"
)

// flakySession is ready from the start or becomes ready after readyAfter
// Initialize+poll cycles.
type flakySession struct {
	ready      bool
	readyAfter int // IsReady calls until readiness after Initialize
	checks     int
	inits      int
	destroys   int
}

func (s *flakySession) IsReady(context.Context) bool {
	if s.ready {
		return true
	}
	if s.inits > 0 {
		s.checks++
		if s.readyAfter > 0 && s.checks >= s.readyAfter {
			s.ready = true
			return true
		}
	}
	return false
}

func (s *flakySession) Initialize(context.Context) error { s.inits++; return nil }
func (s *flakySession) Destroy(context.Context) error    { s.destroys++; return nil }
func (s *flakySession) Send(context.Context, string, string, *domain.AttachmentRef) (Receipt, error) {
	return Receipt{}, nil
}

func TestEnsureReadyPassesThrough(t *testing.T) {
	g := NewGuard(10*time.Millisecond, time.Millisecond)
	s := &flakySession{ready: true}

	if !g.EnsureReady(context.Background(), s) {
		t.Fatalf("ready session reported unavailable")
	}
	if s.destroys != 0 || s.inits != 0 {
		t.Fatalf("guard touched a healthy session")
	}
}

func TestEnsureReadyRestoresSession(t *testing.T) {
	g := NewGuard(100*time.Millisecond, time.Millisecond)
	s := &flakySession{readyAfter: 3}

	if !g.EnsureReady(context.Background(), s) {
		t.Fatalf("session should have been restored")
	}
	if s.destroys != 1 || s.inits != 1 {
		t.Fatalf("destroy/init = %d/%d, want 1/1", s.destroys, s.inits)
	}
}

func TestEnsureReadyTimesOut(t *testing.T) {
	g := NewGuard(10*time.Millisecond, 2*time.Millisecond)
	s := &flakySession{} // never becomes ready

	if g.EnsureReady(context.Background(), s) {
		t.Fatalf("dead session reported ready")
	}
	if s.inits != 1 {
		t.Fatalf("inits = %d, want 1", s.inits)
	}
}

func TestEnsureReadyCanceled(t *testing.T) {
	g := NewGuard(time.Minute, time.Millisecond)
	s := &flakySession{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if g.EnsureReady(ctx, s) {
		t.Fatalf("canceled context reported ready")
	}
}

func TestGuardDefaults(t *testing.T) {
	g := NewGuard(0, 0)
	if g.MaxWait != DefaultGuardWait || g.Poll != DefaultGuardPoll {
		t.Fatalf("defaults = %v/%v", g.MaxWait, g.Poll)
	}
}
