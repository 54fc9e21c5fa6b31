package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/pool"
	"github.com/usched-go/usched/internal/scheduler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, dispatch DispatchFunc) (*Dispatcher, *pool.Pools, *scheduler.Scheduler, context.CancelFunc) {
	t.Helper()
	pools := pool.NewPools()
	sched := scheduler.New(discardLogger(), scheduler.WithPollInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Start(ctx)
	d := New(pools, sched, dispatch, discardLogger())
	return d, pools, sched, cancel
}

func TestDispatcher_New1AdmitsAndArms(t *testing.T) {
	var mu sync.Mutex
	var firedIDs []uint64
	d, pools, _, cancel := newTestDispatcher(t, func(e *domain.Entry) {
		mu.Lock()
		firedIDs = append(firedIDs, e.ID)
		mu.Unlock()
	})
	defer cancel()

	e := domain.NewEntry(domain.FlagNew)
	e.UID = 42
	e.Trigger = time.Now()
	e.Subj = "echo hi"

	id, err := d.New1(e, scheduler.AlignNone)
	if err != nil {
		t.Fatalf("New1: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a non-zero assigned id")
	}
	if !e.Flags.Has(domain.FlagFinish) {
		t.Fatalf("expected entry to reach FINISH")
	}
	got, ok := pools.APool.SearchByID(id)
	if !ok || got != e {
		t.Fatalf("expected entry present in apool under assigned id")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(firedIDs)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(firedIDs) != 1 || firedIDs[0] != id {
		t.Fatalf("expected dispatch callback to fire once for id %d, got %v", id, firedIDs)
	}
}

func TestDispatcher_DeleteRequiresFinishAndOwnership(t *testing.T) {
	d, pools, sched, cancel := newTestDispatcher(t, nil)
	defer cancel()

	e := domain.NewEntry(domain.FlagNew)
	e.UID = 7
	e.ID = 100
	h, _ := sched.Arm(time.Now().Add(time.Hour), 0, time.Time{}, scheduler.AlignNone, func(any) {}, e)
	e.SetSchedID(uint64(h))
	e.Flags.Set(domain.FlagFinish)
	pools.APool.Insert(100, e)

	// Wrong owner: nothing removed.
	removed := d.Delete(999, []uint64{100})
	if len(removed) != 0 {
		t.Fatalf("expected delete by wrong owner to remove nothing, got %v", removed)
	}

	removed = d.Delete(7, []uint64{100})
	if len(removed) != 1 || removed[0] != 100 {
		t.Fatalf("expected delete to remove id 100, got %v", removed)
	}
	if _, ok := pools.APool.SearchByID(100); ok {
		t.Fatalf("expected entry gone from apool after delete")
	}
}

func TestDispatcher_DeleteZeroMeansAllOwnedByUID(t *testing.T) {
	d, pools, sched, cancel := newTestDispatcher(t, nil)
	defer cancel()

	for i, uid := range []uint32{7, 7, 9} {
		e := domain.NewEntry(domain.FlagNew)
		e.UID = uid
		e.ID = uint64(i + 1)
		h, _ := sched.Arm(time.Now().Add(time.Hour), 0, time.Time{}, scheduler.AlignNone, func(any) {}, e)
		e.SetSchedID(uint64(h))
		e.Flags.Set(domain.FlagFinish)
		pools.APool.Insert(e.ID, e)
	}

	removed := d.Delete(7, nil)
	if len(removed) != 2 {
		t.Fatalf("expected 2 entries owned by uid 7 removed, got %v", removed)
	}
	if pools.APool.Count() != 1 {
		t.Fatalf("expected 1 entry (uid 9) to remain, got %d", pools.APool.Count())
	}
}

func TestDispatcher_GetClonesAndHidesSensitiveFields(t *testing.T) {
	d, pools, _, cancel := newTestDispatcher(t, nil)
	defer cancel()

	e := domain.NewEntry(domain.FlagNew)
	e.UID = 5
	e.ID = 55
	e.Payload = []byte("secret")
	e.SetSchedID(123)
	pools.APool.Insert(55, e)

	got := d.Get(5, []uint64{55})
	if len(got) != 1 {
		t.Fatalf("expected 1 matching entry, got %d", len(got))
	}
	if got[0].Payload != nil || got[0].SchedID != 0 {
		t.Fatalf("expected GET clone to hide Payload/SchedID, got %+v", got[0])
	}

	none := d.Get(6, []uint64{55})
	if len(none) != 0 {
		t.Fatalf("expected no results for a non-owning uid, got %d", len(none))
	}
}
