package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/parser"
	"github.com/usched-go/usched/internal/pool"
	"github.com/usched-go/usched/internal/scheduler"
)

// TestIntegration_ParseCompileArmFire drives a sentence all the way through
// the parser, scheduler, and lifecycle layers exactly as a real NEW request
// would, asserting the dispatch callback sees the compiled entry exactly
// once after its relative trigger elapses.
func TestIntegration_ParseCompileArmFire(t *testing.T) {
	reqs, perr := parser.Parse("run echo-hi in 0 seconds")
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}

	now := time.Now()
	compiled, cerr := parser.Compile(reqs[0], now)
	if cerr != nil {
		t.Fatalf("compile: %v", cerr)
	}
	entry := compiled.ToEntry(1000, 1000)

	pools := pool.NewPools()
	sched := scheduler.New(discardLogger(), scheduler.WithPollInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	var mu sync.Mutex
	var fired []*domain.Entry
	d := New(pools, sched, func(e *domain.Entry) {
		mu.Lock()
		fired = append(fired, e)
		mu.Unlock()
	}, discardLogger())

	id, err := d.New1(entry, compiled.Align())
	if err != nil {
		t.Fatalf("New1: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(fired)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Fatalf("expected dispatch to fire exactly once, got %d", len(fired))
	}
	if fired[0].ID != id || fired[0].Subj != "echo-hi" {
		t.Fatalf("unexpected fired entry: %+v", fired[0])
	}
	if !fired[0].Flags.Has(domain.FlagTriggered) {
		t.Fatalf("expected FlagTriggered to be set on fire")
	}
}

// TestIntegration_SlowDispatchFiresExactlyOnce reproduces the scenario a
// one-shot entry must satisfy even when its dispatch callback outlives
// several poll ticks: a slow callback (standing in for a blocking
// internal/ipc.Dispatcher.Dispatch call) must not let the same handle be
// enqueued and fired a second time before the first call returns.
func TestIntegration_SlowDispatchFiresExactlyOnce(t *testing.T) {
	reqs, perr := parser.Parse("run echo-hi now")
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	now := time.Now()
	compiled, cerr := parser.Compile(reqs[0], now)
	if cerr != nil {
		t.Fatalf("compile: %v", cerr)
	}
	entry := compiled.ToEntry(1000, 1000)

	pools := pool.NewPools()
	// A poll interval far shorter than the dispatch callback's runtime
	// lets several ticks elapse while the first firing is still in flight.
	sched := scheduler.New(discardLogger(), scheduler.WithPollInterval(2*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	var mu sync.Mutex
	var fireCount int
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d := New(pools, sched, func(e *domain.Entry) {
		mu.Lock()
		fireCount++
		mu.Unlock()
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}, discardLogger())

	if _, err := d.New1(entry, compiled.Align()); err != nil {
		t.Fatalf("New1: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("dispatch callback never started")
	}

	// Give the scheduler many poll ticks' worth of time to (incorrectly)
	// re-enqueue the same handle while the slow callback still holds it.
	time.Sleep(50 * time.Millisecond)
	close(release)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := fireCount
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Allow any erroneous second firing (if the bug regressed) to land.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fireCount != 1 {
		t.Fatalf("expected exactly one firing for a one-shot entry despite a slow callback, got %d", fireCount)
	}
}
