package scheduler

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAfterStart(t *testing.T) {
	s := NewService()
	if err := s.Register(JobSweep, "* * * * *", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.Register(JobDrain, "* * * * *", func(ctx context.Context) error { return nil }); err == nil {
		t.Error("expected error registering after start")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	s := NewService()
	noop := func(ctx context.Context) error { return nil }
	if err := s.Register(JobSweep, "* * * * *", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(JobSweep, "* * * * *", noop); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewService()
	if err := s.Register(JobSweep, "not a cron spec", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRunNowRecordsState(t *testing.T) {
	s := NewService()
	calls := 0
	if err := s.Register(JobSweep, "@hourly", func(ctx context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(JobDrain, "@hourly", func(ctx context.Context) error {
		return errors.New("drain failed")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.RunNow(JobSweep); err != nil {
		t.Fatalf("RunNow sweep: %v", err)
	}
	if err := s.RunNow(JobDrain); err != nil {
		t.Fatalf("RunNow drain: %v", err)
	}
	if calls != 1 {
		t.Errorf("sweep ran %d times, want 1", calls)
	}

	states := s.States()
	if states[JobSweep].LastStatus != "ok" {
		t.Errorf("sweep status = %q, want ok", states[JobSweep].LastStatus)
	}
	if states[JobDrain].LastStatus != "error" || states[JobDrain].LastError != "drain failed" {
		t.Errorf("drain state = %+v, want recorded error", states[JobDrain])
	}
	if states[JobSweep].LastRunAt.IsZero() {
		t.Error("sweep LastRunAt not recorded")
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := NewService()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if err := s.RunNow("nope"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewService()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	s.Stop()
}
