package pool

import (
	"testing"

	"github.com/usched-go/usched/internal/domain"
)

func TestPool_InsertAndSearch(t *testing.T) {
	p := New[uint64]()
	e := domain.NewEntry(domain.FlagNew)
	e.ID = 7

	p.Insert(7, e)
	got, ok := p.SearchByID(7)
	if !ok || got.ID != 7 {
		t.Fatalf("expected to find entry 7, got %v ok=%v", got, ok)
	}
	if p.Count() != 1 {
		t.Fatalf("expected count 1, got %d", p.Count())
	}
}

func TestPool_PopRemoves(t *testing.T) {
	p := New[uint64]()
	e := domain.NewEntry(domain.FlagNew)
	p.Insert(1, e)

	popped, ok := p.PopByID(1)
	if !ok || popped != e {
		t.Fatalf("expected PopByID to return inserted entry")
	}
	if _, ok := p.SearchByID(1); ok {
		t.Fatalf("expected entry to be gone after Pop")
	}
	if p.Count() != 0 {
		t.Fatalf("expected empty pool after pop, got count %d", p.Count())
	}
}

func TestPool_InsertAtHeadOrdering(t *testing.T) {
	p := New[uint64]()
	p.Insert(1, domain.NewEntry(domain.FlagNew))
	p.Insert(2, domain.NewEntry(domain.FlagNew))
	p.Insert(3, domain.NewEntry(domain.FlagNew))

	keys := p.Keys()
	want := []uint64{3, 2, 1}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys[%d] = %d, want %d", i, keys[i], k)
		}
	}
}

func TestPool_IterateAllowsReentrantRemove(t *testing.T) {
	p := New[uint64]()
	p.Insert(1, domain.NewEntry(domain.FlagNew))
	p.Insert(2, domain.NewEntry(domain.FlagNew))

	var seen int
	p.Iterate(func(key uint64, _ *domain.Entry) bool {
		seen++
		p.RemoveByID(key)
		return true
	})

	if seen != 2 {
		t.Fatalf("expected to visit 2 entries, saw %d", seen)
	}
	if p.Count() != 0 {
		t.Fatalf("expected pool empty after reentrant removal, got %d", p.Count())
	}
}

func TestByOwner_ZeroMeansAll(t *testing.T) {
	ap := NewAPool()
	a := domain.NewEntry(domain.FlagNew)
	a.UID = 100
	b := domain.NewEntry(domain.FlagNew)
	b.UID = 200
	ap.Insert(1, a)
	ap.Insert(2, b)

	all := ByOwner(ap, 0, true)
	if len(all) != 2 {
		t.Fatalf("expected ByOwner with matchAll to return both entries, got %d", len(all))
	}

	mine := ByOwner(ap, 100, false)
	if len(mine) != 1 || mine[0].UID != 100 {
		t.Fatalf("expected ByOwner(100) to return only uid-100 entries, got %v", mine)
	}
}

func TestPools_MoveToAPool(t *testing.T) {
	pools := NewPools()
	e := domain.NewEntry(domain.FlagNew)
	pools.RPool.Insert(5, e)

	moved, ok := pools.MoveToAPool(5, 999)
	if !ok || moved != e {
		t.Fatalf("expected MoveToAPool to relocate the entry")
	}
	if _, stillThere := pools.RPool.SearchByID(5); stillThere {
		t.Fatalf("expected entry removed from rpool after move")
	}
	if got, ok := pools.APool.SearchByID(999); !ok || got != e {
		t.Fatalf("expected entry present in apool under new id")
	}
}
