package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// armedEntry holds everything the scheduler needs to fire and reschedule
// one handle.
type armedEntry struct {
	trigger  time.Time
	step     time.Duration
	expire   time.Time
	align    Align
	callback Callback
	data     any

	// pending is true from the moment poll enqueues this handle on workCh
	// until fire finishes processing it, guarded by Scheduler.mu. It keeps
	// a slow callback from being enqueued a second time by a later poll
	// tick while the first firing is still in flight.
	pending bool

	// firing is held while a callback for this handle is in flight,
	// guaranteeing no two callbacks for the same handle ever run
	// concurrently (spec.md §4.3).
	firing sync.Mutex
}

// Scheduler arms and fires timed callbacks from a small worker pool,
// polling with a ticker in the teacher's dispatcher style
// (internal/scheduler/dispatcher.go in the reference repo) generalized from
// cron-field matching to epoch/step/align arithmetic.
type Scheduler struct {
	mu      sync.Mutex
	entries map[Handle]*armedEntry
	nextID  uint64

	workCh chan Handle
	logger *slog.Logger

	pollInterval time.Duration
	workers      int

	wg sync.WaitGroup
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.pollInterval = d }
}

func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = n }
}

func New(logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		entries:      make(map[Handle]*armedEntry),
		workCh:       make(chan Handle, 256),
		logger:       logger.With("component", "scheduler"),
		pollInterval: time.Second,
		workers:      4,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Arm registers a new timed callback and returns its handle. trigger is the
// absolute wall-clock time of the first firing; step is zero for a
// one-shot. expire, if non-zero, retires the entry once the next computed
// trigger would reach or pass it.
func (s *Scheduler) Arm(trigger time.Time, step time.Duration, expire time.Time, align Align, cb Callback, data any) (Handle, error) {
	if err := ValidateAlign(align, step); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := Handle(s.nextID)
	s.entries[h] = &armedEntry{
		trigger:  trigger,
		step:     step,
		expire:   expire,
		align:    align,
		callback: cb,
		data:     data,
	}
	return h, nil
}

// Disarm removes a handle so it never fires again.
func (s *Scheduler) Disarm(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[h]; !ok {
		return ErrAlreadyDisarmed
	}
	delete(s.entries, h)
	return nil
}

// Search returns the current trigger/step/expire for a handle.
func (s *Scheduler) Search(h Handle) (trigger time.Time, step time.Duration, expire time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h]
	if !ok {
		return time.Time{}, 0, time.Time{}, ErrHandleNotFound
	}
	return e.trigger, e.step, e.expire, nil
}

// Rearm overwrites a handle's trigger — used by the clock-drift monitor to
// apply compensation without disarming and re-arming.
func (s *Scheduler) Rearm(h Handle, trigger time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h]
	if !ok {
		return ErrHandleNotFound
	}
	e.trigger = trigger
	return nil
}

// Start launches the poll loop and worker pool; it returns when ctx is
// canceled.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "poll_interval", s.pollInterval, "workers", s.workers)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			close(s.workCh)
			s.wg.Wait()
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

// poll scans for handles whose trigger has passed and enqueues them for a
// worker to fire. A handle already pending from an earlier tick (its
// previous firing hasn't finished yet) is skipped, so a callback slower
// than one poll interval never gets enqueued — and therefore never fired —
// more than once per due trigger. Never blocks the poll goroutine on a slow
// callback.
func (s *Scheduler) poll() {
	now := time.Now()

	s.mu.Lock()
	var due []Handle
	for h, e := range s.entries {
		if e.pending {
			continue
		}
		if !e.trigger.After(now) {
			e.pending = true
			due = append(due, h)
		}
	}
	s.mu.Unlock()

	for _, h := range due {
		select {
		case s.workCh <- h:
		default:
			s.logger.Warn("scheduler work queue full, firing deferred to next poll", "handle", h)
			s.mu.Lock()
			if e, ok := s.entries[h]; ok {
				e.pending = false
			}
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for h := range s.workCh {
		s.fire(h)
	}
}

// fire invokes the callback for h, then reschedules or retires it. The
// per-handle firing mutex guarantees no two callbacks for the same handle
// ever overlap, even if a slow callback delays the next poll's enqueue.
func (s *Scheduler) fire(h Handle) {
	s.mu.Lock()
	e, ok := s.entries[h]
	s.mu.Unlock()
	if !ok {
		return
	}

	e.firing.Lock()
	defer e.firing.Unlock()
	defer func() {
		s.mu.Lock()
		if cur, ok := s.entries[h]; ok {
			cur.pending = false
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	e.callback(e.data)
	latency := time.Since(start)
	s.logger.Debug("handle fired", "handle", h, "latency", latency)

	if e.step <= 0 {
		s.Disarm(h)
		return
	}

	next := NextTrigger(e.trigger, e.step, e.align)
	if !e.expire.IsZero() && !next.Before(e.expire) {
		s.logger.Debug("handle retired at expire bound", "handle", h, "expire", e.expire)
		s.Disarm(h)
		return
	}

	s.mu.Lock()
	if cur, ok := s.entries[h]; ok {
		cur.trigger = next
	}
	s.mu.Unlock()
}

// Count returns the number of currently armed handles.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
