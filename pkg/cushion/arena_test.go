package cushion

import "testing"

func TestArenaAllocString(t *testing.T) {
	a := NewArena()
	s, err := a.AllocString("hello")
	if err != nil {
		t.Fatalf("AllocString: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %q, want %q", s, "hello")
	}
}

func TestArenaTransientRewind(t *testing.T) {
	a := NewArena()
	marker := a.MarkTransient()

	if _, err := a.Allocate(64, 1, Transient); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Allocate(64, 1, Transient); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	before := a.curTransient()
	if before == 0 {
		t.Fatal("expected nonzero transient cursor after allocating")
	}

	a.ResetTransient(marker)
	if got := a.curTransient(); got != 0 {
		t.Fatalf("transient cursor after reset = %d, want 0", got)
	}
}

func TestArenaTransientRewindDoesNotAffectPersistent(t *testing.T) {
	a := NewArena()
	if _, err := a.Allocate(32, 1, Persistent); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	marker := a.MarkTransient()
	if _, err := a.Allocate(32, 1, Transient); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	persistentBefore := a.pages[0].persistentCur

	a.ResetTransient(marker)
	if a.pages[0].persistentCur != persistentBefore {
		t.Fatalf("persistent cursor changed by a transient reset: %d vs %d", a.pages[0].persistentCur, persistentBefore)
	}
}

func TestArenaPersistentAndTransientNeverOverlap(t *testing.T) {
	a := NewArena()
	// Force a single small page so the two cursors are close together.
	big, err := a.Allocate(pageSize-128, 1, Transient)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	small, err := a.Allocate(64, 1, Persistent)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(big) == 0 || len(small) == 0 {
		t.Fatal("expected both allocations to succeed")
	}
	// One more large transient allocation should now fail to fit in the
	// same page (it crosses into persistent space) and instead spill to a
	// fresh page rather than corrupt the first.
	if _, err := a.Allocate(pageSize, 1, Transient); err != nil {
		t.Fatalf("Allocate should spill to a new page, got error: %v", err)
	}
	if len(a.pages) < 2 {
		t.Fatalf("expected a second page to have been allocated, got %d pages", len(a.pages))
	}
}

func TestArenaInvalidAllocationIsAnError(t *testing.T) {
	a := NewArena()
	if _, err := a.Allocate(-1, 1, Transient); err == nil {
		t.Fatal("expected an error for a negative size")
	}
	if _, err := a.Allocate(1, 0, Transient); err == nil {
		t.Fatal("expected an error for a non-positive alignment")
	}
}

func TestArenaZeroSizeAllocationIsANoop(t *testing.T) {
	a := NewArena()
	b, err := a.Allocate(0, 1, Transient)
	if err != nil {
		t.Fatalf("Allocate(0, ...): %v", err)
	}
	if b != nil {
		t.Fatalf("got %v, want nil", b)
	}
}
