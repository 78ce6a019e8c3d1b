package store

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func inv(host string) json.RawMessage {
	return json.RawMessage(`{"agent":{"host":"` + host + `"}}`)
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(time.Hour)
	st.Put("desk-01", inv("desk-01"))

	e, ok := st.Get("desk-01")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.AgentID != "desk-01" || string(e.Inventory) != string(inv("desk-01")) {
		t.Errorf("entry: got %+v", e)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(time.Hour)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_Overwrites(t *testing.T) {
	st := New(time.Hour)
	st.Put("pc", inv("first"))
	st.Put("pc", inv("second"))

	e, ok := st.Get("pc")
	if !ok {
		t.Fatal("Get: expected entry after two Puts")
	}
	if string(e.Inventory) != string(inv("second")) {
		t.Errorf("Inventory: got %s, want the second upload", e.Inventory)
	}
	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1", st.Count())
	}
}

func TestList_ExcludesStaleAndSorts(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Put("old", inv("old"))

	st.now = fixedClock(base) // live
	st.Put("zeta", inv("zeta"))
	st.Put("alpha", inv("alpha"))

	entries := st.List()
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].AgentID != "alpha" || entries[1].AgentID != "zeta" {
		t.Errorf("List order: got %s, %s", entries[0].AgentID, entries[1].AgentID)
	}
	if _, ok := st.Get("old"); ok {
		t.Error("Get returned a stale entry")
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put("old1", inv("a"))
	st.Put("old2", inv("b"))

	st.now = fixedClock(base)
	st.Put("live", inv("c"))

	if removed := st.Evict(base); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
}

func TestZeroTTL_KeepsForever(t *testing.T) {
	base := time.Now()
	st := New(0)

	st.now = fixedClock(base.Add(-365 * 24 * time.Hour))
	st.Put("ancient", inv("ancient"))
	st.now = fixedClock(base)

	if removed := st.Evict(base); removed != 0 {
		t.Errorf("Evict with zero TTL removed %d", removed)
	}
	if _, ok := st.Get("ancient"); !ok {
		t.Error("entry should never expire with zero TTL")
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(5 * time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Put("src-a", inv("a"))
		}()
		go func() {
			defer wg.Done()
			st.List()
		}()
	}
	wg.Wait()

	if st.Count() != 1 {
		t.Errorf("Count after concurrent puts: got %d, want 1", st.Count())
	}
}
