package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dirctl/ldapdm/internal/direrr"
)

func TestRunChainedThreadsPayload(t *testing.T) {
	r := New()

	r.RegisterChained("plugin-a", "x", func(_ context.Context, payload any) (any, error) {
		return payload.(int) + 1, nil
	})
	r.RegisterChained("plugin-b", "x", func(_ context.Context, payload any) (any, error) {
		return payload.(int) * 2, nil
	})
	r.Seal()

	got, err := r.RunChained(context.Background(), "x", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.(int) != 4 {
		t.Fatalf("expected 4, got %v", got)
	}
}

func TestRunChainedAbortsOnError(t *testing.T) {
	r := New()

	var ranSecond bool

	r.RegisterChained("plugin-a", "x", func(_ context.Context, _ any) (any, error) {
		return nil, errors.New("rejected by plugin-a")
	})
	r.RegisterChained("plugin-b", "x", func(_ context.Context, payload any) (any, error) {
		ranSecond = true
		return payload, nil
	})
	r.Seal()

	_, err := r.RunChained(context.Background(), "x", 1)
	if err == nil {
		t.Fatal("expected error")
	}

	if !errors.Is(err, direrr.ErrHookRejected) {
		t.Fatalf("expected direrr.ErrHookRejected, got %v", err)
	}

	if ranSecond {
		t.Fatal("chain should have aborted before the second handler ran")
	}
}

func TestRunFanoutRunsAllHandlersConcurrently(t *testing.T) {
	r := New()

	var count int32

	for i := 0; i < 5; i++ {
		r.RegisterFanout("plugin", "y", func(_ context.Context, _ any) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
	}
	r.Seal()

	r.RunFanout(context.Background(), "y", nil)

	if count != 5 {
		t.Fatalf("expected all 5 handlers to run, got %d", count)
	}
}

func TestRunFanoutCollectWarningsReportsFailures(t *testing.T) {
	r := New()

	r.RegisterFanout("plugin-a", "y", func(_ context.Context, _ any) error {
		return errors.New("boom")
	})
	r.RegisterFanout("plugin-b", "y", func(_ context.Context, _ any) error {
		return nil
	})
	r.Seal()

	warnings := r.RunFanoutCollectWarnings(context.Background(), "y", nil)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
}

func TestRunFanoutRecoversFromPanic(t *testing.T) {
	r := New()

	r.RegisterFanout("plugin-a", "z", func(_ context.Context, _ any) error {
		panic("boom")
	})
	r.Seal()

	// Must not panic out of RunFanout.
	r.RunFanout(context.Background(), "z", nil)
}

func TestRegisterAfterSealPanics(t *testing.T) {
	r := New()
	r.Seal()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when registering after seal")
		}
	}()

	r.RegisterChained("late", "x", func(_ context.Context, payload any) (any, error) {
		return payload, nil
	})
}

func TestEntityHookNames(t *testing.T) {
	names := EntityHookNames("person")

	if names.AddRequest != "personAddRequest" {
		t.Fatalf("expected personAddRequest, got %s", names.AddRequest)
	}

	if names.MoveDone != "personMoveDone" {
		t.Fatalf("expected personMoveDone, got %s", names.MoveDone)
	}
}
