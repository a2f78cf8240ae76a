package headless

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	c, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(c.Close)
	if cap(c.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(c.limiter))
	}
	if c.cfg.NavigationTimeout != defaultNavigationTimeout {
		t.Fatalf("expected default navigation timeout, got %v", c.cfg.NavigationTimeout)
	}
	if c.cfg.Quality != defaultQuality {
		t.Fatalf("expected default quality, got %d", c.cfg.Quality)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	c := &Capturer{limiter: make(chan struct{}, 1)}
	if err := c.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	c.release()
	if err := c.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestUnlimitedCapturerSkipsLimiter(t *testing.T) {
	t.Parallel()

	c := &Capturer{}
	if err := c.acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	c.release()
}

func TestActionsSequence(t *testing.T) {
	t.Parallel()

	c := &Capturer{cfg: Config{Quality: 80, UserAgent: "bot"}}
	var shot []byte
	if got := len(c.actions("https://example.com", &shot)); got != 5 {
		t.Fatalf("expected 5 actions, got %d", got)
	}
}
