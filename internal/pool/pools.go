package pool

import "github.com/usched-go/usched/internal/domain"

// RPool holds entries still in flight on a connection, keyed by file
// descriptor.
type RPool = Pool[int]

// APool holds entries the scheduler has armed, keyed by assigned id.
type APool = Pool[uint64]

// NewRPool and NewAPool are thin constructors kept distinct so call sites
// read as "the rpool" / "the apool" rather than a bare generic New[int]().
func NewRPool() *RPool { return New[int]() }
func NewAPool() *APool { return New[uint64]() }

// Pools bundles the two pools together and documents the lock ordering
// every caller touching both must follow: rpool before apool, never the
// reverse (spec.md §4.2's single cross-pool invariant).
type Pools struct {
	RPool *RPool
	APool *APool
}

func NewPools() *Pools {
	return &Pools{RPool: NewRPool(), APool: NewAPool()}
}

// MoveToAPool removes e from rpool under key fd and inserts it into apool
// under its assigned id, acquiring rpool's lock first as required.
func (p *Pools) MoveToAPool(fd int, id uint64) (*domain.Entry, bool) {
	e, ok := p.RPool.PopByID(fd)
	if !ok {
		return nil, false
	}
	p.APool.Insert(id, e)
	return e, true
}

// ByOwner returns every entry in apool owned by uid, or every entry in
// apool when matchAll is set — the "0 means all entries owned by this uid"
// convention used by DEL/GET (spec.md §4.6) passes matchAll=false.
func ByOwner(p *APool, uid uint32, matchAll bool) []*domain.Entry {
	var out []*domain.Entry
	p.Iterate(func(_ uint64, e *domain.Entry) bool {
		if matchAll || e.UID == uid {
			out = append(out, e)
		}
		return true
	})
	return out
}
