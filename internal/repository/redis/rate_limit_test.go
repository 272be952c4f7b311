package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_SlidingWindow(t *testing.T) {
	server, client := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl", TTL: time.Minute})
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "token:10.0.0.1", base.Add(time.Duration(i)*10*time.Second)); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	if ttl := server.TTL("rl:token:10.0.0.1"); ttl != time.Minute {
		t.Fatalf("unexpected ttl: %v", ttl)
	}

	reference := base.Add(25 * time.Second)
	count, err := repo.CountAttempts(ctx, "token:10.0.0.1", 20*time.Second, reference)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts in window, got %d", count)
	}

	oldest, ok, err := repo.OldestAttempt(ctx, "token:10.0.0.1", 20*time.Second, reference)
	if err != nil || !ok {
		t.Fatalf("OldestAttempt returned ok=%v err=%v", ok, err)
	}
	if !oldest.Equal(base.Add(10 * time.Second)) {
		t.Fatalf("unexpected oldest attempt: %v", oldest)
	}

	if err := repo.TrimWindow(ctx, "token:10.0.0.1", 20*time.Second, reference); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}
	count, err = repo.CountAttempts(ctx, "token:10.0.0.1", time.Hour, reference)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected trim to drop one attempt, got %d left", count)
	}
}

func TestRateLimitRepository_RejectsNonPositiveWindow(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	if _, err := repo.CountAttempts(context.Background(), "x", 0, time.Now()); err == nil {
		t.Fatalf("expected error for zero window")
	}
}
