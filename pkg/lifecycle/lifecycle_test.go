package lifecycle_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/mxn2020/prompt-verse-io/pkg/lifecycle"
)

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
}

func TestReadyAfterStartup(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()

	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			count.Add(1)
		})
	}

	lc.WaitForStartup()

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	err := lc.Shutdown(50 * time.Millisecond)
	if err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context should be cancelled after shutdown")
	}
}

type flag struct{ ready atomic.Bool }

func (f *flag) Ready() bool { return f.ready.Load() }

func TestTrackedSubsystemsGateReadiness(t *testing.T) {
	lc := lifecycle.New()

	db := &flag{}
	cache := &flag{}
	lc.Track("database", db)
	lc.Track("cache", cache)

	lc.OnStartup(func() { db.ready.Store(true) })
	lc.WaitForStartup()

	if lc.Ready() {
		t.Error("should not be ready while a tracked subsystem is not ready")
	}

	status := lc.Status()
	if !status["database"] || status["cache"] {
		t.Errorf("Status() = %v, want database ready and cache not ready", status)
	}

	cache.ready.Store(true)
	if !lc.Ready() {
		t.Error("should be ready once every tracked subsystem is ready")
	}
}

func TestTrackedSubsystemsRequireStartup(t *testing.T) {
	lc := lifecycle.New()

	db := &flag{}
	db.ready.Store(true)
	lc.Track("database", db)

	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
}

func TestStatusEmpty(t *testing.T) {
	lc := lifecycle.New()
	if got := lc.Status(); len(got) != 0 {
		t.Errorf("Status() = %v, want empty", got)
	}
}
