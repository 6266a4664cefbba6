package readyqueue

import "testing"

func TestPriorityOrdering(t *testing.T) {
	q := New()
	q.Insert(1, 3)
	q.Insert(2, 10)
	q.Insert(3, 5)

	h, ok := q.PopHead()
	if !ok || h != 2 {
		t.Fatalf("expected handle 2 (priority 10) first, got %v ok=%v", h, ok)
	}
	h, ok = q.PopHead()
	if !ok || h != 3 {
		t.Fatalf("expected handle 3 (priority 5) next, got %v ok=%v", h, ok)
	}
	h, ok = q.PopHead()
	if !ok || h != 1 {
		t.Fatalf("expected handle 1 (priority 3) last, got %v ok=%v", h, ok)
	}
	if _, ok := q.PopHead(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestFIFOWithinBand(t *testing.T) {
	q := New()
	q.Insert(1, 5)
	q.Insert(2, 5)
	q.Insert(3, 5)

	for _, want := range []uint64{1, 2, 3} {
		h, ok := q.PopHead()
		if !ok || uint64(h) != want {
			t.Fatalf("expected handle %d, got %v ok=%v", want, h, ok)
		}
	}
}

func TestYieldGoesToTailOfBand(t *testing.T) {
	q := New()
	q.Insert(1, 5)
	q.Insert(2, 5)

	// Simulate task 1 running then yielding: re-inserting it should place
	// it behind 2, which was never removed.
	q.Remove(1)
	q.Insert(1, 5)

	h, _ := q.PopHead()
	if h != 2 {
		t.Fatalf("expected 2 at head after 1 yielded, got %v", h)
	}
	h, _ = q.PopHead()
	if h != 1 {
		t.Fatalf("expected 1 at tail after yielding, got %v", h)
	}
}

func TestRemoveArbitrary(t *testing.T) {
	q := New()
	q.Insert(1, 5)
	q.Insert(2, 7)
	q.Insert(3, 5)

	if !q.Remove(2) {
		t.Fatalf("expected Remove(2) to report present")
	}
	if q.Remove(2) {
		t.Fatalf("expected second Remove(2) to report absent")
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	h, _ := q.PopHead()
	if h != 1 {
		t.Fatalf("expected handle 1 after removing 2, got %v", h)
	}
}

func TestContainsAndHandles(t *testing.T) {
	q := New()
	q.Insert(1, 5)
	q.Insert(2, 9)
	if !q.Contains(1) || !q.Contains(2) {
		t.Fatalf("expected both handles present")
	}
	handles := q.Handles()
	if len(handles) != 2 || handles[0] != 2 || handles[1] != 1 {
		t.Fatalf("unexpected order: %v", handles)
	}
}
