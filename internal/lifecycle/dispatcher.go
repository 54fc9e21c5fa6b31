package lifecycle

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/usched-go/usched/internal/domain"
	"github.com/usched-go/usched/internal/errs"
	"github.com/usched-go/usched/internal/pool"
	"github.com/usched-go/usched/internal/scheduler"
)

// DispatchFunc hands a fired entry off to whatever transport delivers it to
// an executor (internal/ipc in this tree). It is the `dispatch_callback`
// named in spec.md §4.6's NEW description.
type DispatchFunc func(e *domain.Entry)

// Dispatcher implements the NEW/DEL/GET opcode handling of spec.md §4.6.
type Dispatcher struct {
	pools    *pool.Pools
	sched    *scheduler.Scheduler
	dispatch DispatchFunc
	logger   *slog.Logger

	maxIDRetries int
}

func New(pools *pool.Pools, sched *scheduler.Scheduler, dispatch DispatchFunc, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		pools:        pools,
		sched:        sched,
		dispatch:     dispatch,
		logger:       logger.With("component", "lifecycle"),
		maxIDRetries: 8,
	}
}

// New1 admits a freshly-parsed/decoded entry: assigns a collision-free id,
// arms the scheduler, inserts into the active pool, and marks it FINISH.
// Any failure after id assignment but before pool insertion disarms the
// scheduler handle, per spec.md §4.6's orphan-avoidance rule.
func (d *Dispatcher) New1(e *domain.Entry, align scheduler.Align) (uint64, error) {
	e.Flags.Set(domain.FlagProgress)

	id, err := d.assignUniqueID()
	if err != nil {
		return 0, err
	}
	e.ID = id

	handle, err := d.sched.Arm(e.Trigger, e.Step, e.Expire, align, func(data any) {
		if entry, ok := data.(*domain.Entry); ok {
			d.onFire(entry)
		}
	}, e)
	if err != nil {
		return 0, err
	}
	e.SetSchedID(uint64(handle))

	d.pools.APool.Insert(id, e)

	e.Flags.Unset(domain.FlagProgress)
	e.Flags.Set(domain.FlagFinish)

	d.logger.Info("entry admitted", "id", id, "uid", e.UID)
	return id, nil
}

// Restore re-arms an entry reloaded from the marshal file at startup,
// keeping its persisted id rather than assigning a fresh one (spec.md
// §4.7's reload path). trigger is the firing time computed by the caller
// (for a recurring entry, advanced past occurrences missed while the daemon
// was down); e's own Trigger field is updated to match.
func (d *Dispatcher) Restore(e *domain.Entry, trigger time.Time, align scheduler.Align) error {
	e.Trigger = trigger
	e.Flags.Set(domain.FlagFinish)

	handle, err := d.sched.Arm(e.Trigger, e.Step, e.Expire, align, func(data any) {
		if entry, ok := data.(*domain.Entry); ok {
			d.onFire(entry)
		}
	}, e)
	if err != nil {
		return err
	}
	e.SetSchedID(uint64(handle))
	d.pools.APool.Insert(e.ID, e)

	d.logger.Info("entry restored", "id", e.ID, "uid", e.UID, "trigger", e.Trigger)
	return nil
}

// onFire is the scheduler callback: mark triggered, hand off to the
// dispatch function (the daemon↔executor IPC channel), and stamp that the
// entry has fired at least once for drift-compensation purposes.
func (d *Dispatcher) onFire(e *domain.Entry) {
	e.Flags.Set(domain.FlagTriggered)
	if d.dispatch != nil {
		d.dispatch(e)
	}
}

func (d *Dispatcher) assignUniqueID() (uint64, error) {
	for i := 0; i < d.maxIDRetries; i++ {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		id := binary.BigEndian.Uint64(buf[:])
		if id == 0 {
			continue
		}
		if _, exists := d.pools.APool.SearchByID(id); !exists {
			return id, nil
		}
	}
	return 0, ErrIDCollision
}

// Delete implements DEL: ids empty or containing only 0 means "all entries
// owned by uid". Returns the ids actually removed.
func (d *Dispatcher) Delete(uid uint32, ids []uint64) []uint64 {
	matchAll := len(ids) == 0 || (len(ids) == 1 && ids[0] == 0)

	var targets []*domain.Entry
	if matchAll {
		targets = pool.ByOwner(d.pools.APool, uid, false)
	} else {
		for _, id := range ids {
			if e, ok := d.pools.APool.SearchByID(id); ok {
				targets = append(targets, e)
			}
		}
	}

	var removed []uint64
	for _, e := range targets {
		if e.UID != uid {
			d.logger.Debug("DEL ownership mismatch, skipping", "id", e.ID, "owner", e.UID, "requester", uid,
				"error", errs.Wrap(errs.ErrAuthorization, domain.ErrOwnershipMismatch))
			continue
		}
		if !e.Flags.Has(domain.FlagFinish) {
			continue
		}
		d.sched.Disarm(scheduler.Handle(e.GetSchedID()))
		d.pools.APool.RemoveByID(e.ID)
		removed = append(removed, e.ID)
	}

	d.logger.Info("entries deleted", "uid", uid, "count", len(removed))
	return removed
}

// Get implements GET: ids empty or containing only 0 means "all entries
// owned by uid". Returns clones, which never carry Session/Payload/SchedID.
func (d *Dispatcher) Get(uid uint32, ids []uint64) []*domain.Entry {
	matchAll := len(ids) == 0 || (len(ids) == 1 && ids[0] == 0)

	var out []*domain.Entry
	if matchAll {
		for _, e := range pool.ByOwner(d.pools.APool, uid, false) {
			out = append(out, e.Clone())
		}
		return out
	}

	for _, id := range ids {
		e, ok := d.pools.APool.SearchByID(id)
		if !ok {
			continue
		}
		if e.UID != uid {
			d.logger.Debug("GET ownership mismatch, skipping", "id", e.ID, "owner", e.UID, "requester", uid,
				"error", errs.Wrap(errs.ErrAuthorization, domain.ErrOwnershipMismatch))
			continue
		}
		out = append(out, e.Clone())
	}
	return out
}
