package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_SucceedsAfterRetries(t *testing.T) {
	b := NewBackoff(time.Millisecond, 3)

	calls := 0
	err := b.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	b := NewBackoff(time.Millisecond, 2)

	sentinel := errors.New("still failing")
	calls := 0
	err := b.Do(context.Background(), func(attempt int) error {
		calls++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected maxRetries+1 calls, got %d", calls)
	}
}

func TestBackoff_ContextCancelsWait(t *testing.T) {
	b := NewBackoff(time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Do(ctx, func(attempt int) error {
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
