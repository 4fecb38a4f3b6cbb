package pending

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestStageAssignsRandomSessionID(t *testing.T) {
	store := NewStore()
	first := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 1"})
	second := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 2"})

	if first.SessionID == "" || second.SessionID == "" {
		t.Fatal("session ids must not be empty")
	}
	if first.SessionID == second.SessionID {
		t.Fatal("session ids must be unique")
	}
	if first.Status != StatusPending {
		t.Fatalf("Status = %q", first.Status)
	}
}

func TestConfirmRunsExecOnce(t *testing.T) {
	store := NewStore()
	staged := store.Stage(KindSQLExampleTraining, Payload{Question: "q", SQL: "SELECT 1"})

	var calls int
	action, err := store.Confirm(context.Background(), staged.SessionID, func(_ context.Context, a Action) error {
		calls++
		if a.Payload.Question != "q" {
			t.Fatalf("Payload.Question = %q", a.Payload.Question)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if action.Status != StatusConfirmed {
		t.Fatalf("Status = %q", action.Status)
	}
	if calls != 1 {
		t.Fatalf("exec calls = %d", calls)
	}

	_, err = store.Confirm(context.Background(), staged.SessionID, func(context.Context, Action) error {
		t.Fatal("exec must not run twice")
		return nil
	})
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("second confirm error = %v, want ErrAlreadyFinalized", err)
	}
}

func TestConfirmUnknownSession(t *testing.T) {
	store := NewStore()
	_, err := store.Confirm(context.Background(), "nope", nil)
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("error = %v, want ErrUnknownSession", err)
	}
}

func TestCancelAfterConfirmIsAlreadyFinalized(t *testing.T) {
	store := NewStore()
	staged := store.Stage(KindDocumentationTraining, Payload{Documentation: "doc"})

	if _, err := store.Confirm(context.Background(), staged.SessionID, nil); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if _, err := store.Cancel(staged.SessionID); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("Cancel() error = %v, want ErrAlreadyFinalized", err)
	}
}

func TestConfirmAfterCancelIsAlreadyFinalized(t *testing.T) {
	store := NewStore()
	staged := store.Stage(KindDDLTraining, Payload{Schema: "public"})

	if _, err := store.Cancel(staged.SessionID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	action, err := store.Confirm(context.Background(), staged.SessionID, nil)
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("Confirm() error = %v, want ErrAlreadyFinalized", err)
	}
	if action.Status != StatusCancelled {
		t.Fatalf("Status = %q", action.Status)
	}
}

func TestFailedExecKeepsSessionPending(t *testing.T) {
	store := NewStore()
	staged := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 1"})

	boom := errors.New("boom")
	if _, err := store.Confirm(context.Background(), staged.SessionID, func(context.Context, Action) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Confirm() error = %v, want boom", err)
	}

	action, err := store.Get(staged.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if action.Status != StatusPending {
		t.Fatalf("Status = %q, want pending after failed exec", action.Status)
	}
	if _, err := store.Confirm(context.Background(), staged.SessionID, nil); err != nil {
		t.Fatalf("retry Confirm() error = %v", err)
	}
}

func TestConcurrentConfirmsExecuteExactlyOnce(t *testing.T) {
	store := NewStore()
	staged := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 1"})

	const attempts = 32
	var executions atomic.Int64
	var finalized atomic.Int64

	var group errgroup.Group
	for range attempts {
		group.Go(func() error {
			_, err := store.Confirm(context.Background(), staged.SessionID, func(context.Context, Action) error {
				executions.Add(1)
				return nil
			})
			if errors.Is(err, ErrAlreadyFinalized) {
				finalized.Add(1)
				return nil
			}
			return err
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("group.Wait() error = %v", err)
	}

	if executions.Load() != 1 {
		t.Fatalf("executions = %d, want exactly 1", executions.Load())
	}
	if finalized.Load() != attempts-1 {
		t.Fatalf("finalized = %d, want %d", finalized.Load(), attempts-1)
	}
}

func TestConcurrentConfirmsOnDifferentSessionsDoNotBlock(t *testing.T) {
	store := NewStore()
	first := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 1"})
	second := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 2"})

	release := make(chan struct{})
	started := make(chan struct{})

	var group errgroup.Group
	group.Go(func() error {
		_, err := store.Confirm(context.Background(), first.SessionID, func(context.Context, Action) error {
			close(started)
			<-release
			return nil
		})
		return err
	})

	<-started
	// The first confirm is parked inside exec; an unrelated session must
	// still finalize without waiting for it.
	done := make(chan error, 1)
	go func() {
		_, err := store.Confirm(context.Background(), second.SessionID, nil)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unrelated Confirm() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated session blocked behind a busy session")
	}

	close(release)
	if err := group.Wait(); err != nil {
		t.Fatalf("group.Wait() error = %v", err)
	}
}

func TestSweepExpiredEvictsOldSessions(t *testing.T) {
	current := time.Now()
	store := NewStore(
		WithTTL(10*time.Minute),
		WithClock(func() time.Time { return current }),
	)

	stale := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 1"})
	confirmedStale := store.Stage(KindDocumentationTraining, Payload{Documentation: "doc"})
	if _, err := store.Confirm(context.Background(), confirmedStale.SessionID, nil); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	current = current.Add(11 * time.Minute)
	fresh := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 2"})

	summary := store.SweepExpired()
	if summary.Removed != 2 {
		t.Fatalf("Removed = %d, want 2", summary.Removed)
	}
	if summary.ExpiredPending != 1 {
		t.Fatalf("ExpiredPending = %d, want 1", summary.ExpiredPending)
	}

	if _, err := store.Get(stale.SessionID); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("stale Get() error = %v, want ErrUnknownSession", err)
	}
	if _, err := store.Get(fresh.SessionID); err != nil {
		t.Fatalf("fresh Get() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
}

func TestSweepDoesNotSerializeStoreBehindBusyConfirm(t *testing.T) {
	current := time.Now()
	store := NewStore(
		WithTTL(10*time.Minute),
		WithClock(func() time.Time { return current }),
	)
	busy := store.Stage(KindSQLExecution, Payload{SQL: "SELECT 1"})

	release := make(chan struct{})
	started := make(chan struct{})

	var group errgroup.Group
	group.Go(func() error {
		_, err := store.Confirm(context.Background(), busy.SessionID, func(context.Context, Action) error {
			close(started)
			<-release
			return nil
		})
		return err
	})
	<-started

	// The busy session is past its TTL, so the sweep will wait on its
	// session lock. That wait must not hold the store lock.
	current = current.Add(11 * time.Minute)
	swept := make(chan SweepSummary, 1)
	go func() { swept <- store.SweepExpired() }()

	staged := make(chan Action, 1)
	go func() { staged <- store.Stage(KindSQLExecution, Payload{SQL: "SELECT 2"}) }()
	select {
	case fresh := <-staged:
		if _, err := store.Get(fresh.SessionID); err != nil {
			t.Fatalf("fresh Get() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated Stage blocked behind a busy session while the sweeper ran")
	}

	close(release)
	if err := group.Wait(); err != nil {
		t.Fatalf("group.Wait() error = %v", err)
	}
	summary := <-swept
	if summary.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", summary.Removed)
	}
	if _, err := store.Get(busy.SessionID); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("busy Get() error = %v, want ErrUnknownSession", err)
	}
}
