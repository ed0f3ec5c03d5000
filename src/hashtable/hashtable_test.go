package hashtable

import "testing"

func TestSetGetDel(t *testing.T) {
	ht := MkHash(8)

	if _, inserted := ht.Set(1, "one"); !inserted {
		t.Fatalf("expected first Set to insert")
	}
	if v, ok := ht.Get(1); !ok || v != "one" {
		t.Fatalf("Get(1) = %v, %v; want one, true", v, ok)
	}
	if _, inserted := ht.Set(1, "uno"); inserted {
		t.Fatalf("Set on existing key should report not-inserted")
	}
	// Set on an existing key leaves the original value in place.
	if v, _ := ht.Get(1); v != "one" {
		t.Fatalf("Get(1) after duplicate Set = %v, want one", v)
	}

	ht.Del(1)
	if _, ok := ht.Get(1); ok {
		t.Fatalf("expected key 1 to be gone after Del")
	}
}

func TestSizeAndElems(t *testing.T) {
	ht := MkHash(4)
	ht.Set("a", 1)
	ht.Set("b", 2)
	ht.Set("c", 3)
	if ht.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", ht.Size())
	}
	seen := map[string]int{}
	for _, p := range ht.Elems() {
		seen[p.Key.(string)] = p.Value.(int)
	}
	if seen["a"] != 1 || seen["b"] != 2 || seen["c"] != 3 {
		t.Fatalf("Elems() missing entries: %v", seen)
	}
}

func TestIterStopsOnTrue(t *testing.T) {
	ht := MkHash(4)
	for i := 0; i < 5; i++ {
		ht.Set(i, i*i)
	}
	visited := 0
	stopped := ht.Iter(func(k, v interface{}) bool {
		visited++
		return k.(int) == 2
	})
	if !stopped {
		t.Fatalf("expected Iter to report early stop")
	}
	if visited == 0 || visited > 5 {
		t.Fatalf("unexpected visited count %d", visited)
	}
}

func TestDelOfMissingKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic deleting a missing key")
		}
	}()
	MkHash(4).Del(99)
}
