package auctions

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/pkg/logger"
)

func TestSweeperClosesDueAuctions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t)
	a := f.createActive(t, time.Minute)
	f.clock.Advance(time.Minute)

	sweeper := NewSweeper(f.svc, "@every 1s", logger.NewDiscard())
	if err := sweeper.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sweeper.Start(context.Background()); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := f.svc.Get(context.Background(), a.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == auction.StatusEnded {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not close auction, status %s", got.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sweeper.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := sweeper.Stop(ctx); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	sweeper := NewSweeper(f.svc, "every now and then", logger.NewDiscard())
	if err := sweeper.Start(context.Background()); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestRunOnce(t *testing.T) {
	f := newFixture(t)
	f.createActive(t, time.Minute)
	f.clock.Advance(time.Minute)

	res, err := NewSweeper(f.svc, "", nil).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if res.Closed != 1 {
		t.Fatalf("expected one closed auction, got %#v", res)
	}
}
