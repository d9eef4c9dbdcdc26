package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flub/pool-engine/internal/model"
)

type fakePool struct {
	recalcs   int
	audits    int
	recalcErr error
}

func (f *fakePool) RecalculateAllocations(context.Context) error {
	f.recalcs++
	return f.recalcErr
}

func (f *fakePool) AuditShares(context.Context) (*model.ShareAudit, error) {
	f.audits++
	return &model.ShareAudit{CheckedAt: time.Now()}, nil
}

func TestRunOnce(t *testing.T) {
	fp := &fakePool{}
	s := NewScheduler(fp, time.Second)

	s.RunOnce(context.Background())

	if fp.recalcs != 1 || fp.audits != 1 {
		t.Errorf("expected one recalc and one audit, got %d and %d", fp.recalcs, fp.audits)
	}
}

func TestRunOnce_SkipsAuditOnRecalcFailure(t *testing.T) {
	fp := &fakePool{recalcErr: errors.New("store down")}
	s := NewScheduler(fp, time.Second)

	s.RunOnce(context.Background())

	if fp.audits != 0 {
		t.Errorf("audit should not run after a failed recalc, ran %d times", fp.audits)
	}
}

func TestStart_InvalidSpec(t *testing.T) {
	s := NewScheduler(&fakePool{}, time.Second)
	if err := s.Start("not a schedule"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&fakePool{}, time.Second)
	if err := s.Start("@every 1h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
