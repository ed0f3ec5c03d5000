package util

import "testing"

func TestMin(t *testing.T) {
	if Min(3, 5) != 3 {
		t.Fatalf("Min(3,5) should be 3")
	}
	if Min(uint32(9), uint32(2)) != 2 {
		t.Fatalf("Min(9,2) should be 2")
	}
}

func TestRounddownRoundup(t *testing.T) {
	if Rounddown(13, 4) != 12 {
		t.Fatalf("Rounddown(13,4) should be 12")
	}
	if Rounddown(12, 4) != 12 {
		t.Fatalf("Rounddown(12,4) should be 12")
	}
	if Roundup(13, 4) != 16 {
		t.Fatalf("Roundup(13,4) should be 16")
	}
	if Roundup(12, 4) != 12 {
		t.Fatalf("Roundup(12,4) should be 12")
	}
}

func TestReadnWritenRoundtrip(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 8, 0, 0x1122334455667788)
	if got := Readn(buf, 8, 0); got != 0x1122334455667788 {
		t.Fatalf("got %#x", got)
	}
	Writen(buf, 4, 8, 42)
	if got := Readn(buf, 4, 8); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	Writen(buf, 1, 12, 7)
	if got := Readn(buf, 1, 12); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestReadnOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-bounds Readn")
		}
	}()
	Readn(make([]uint8, 4), 8, 0)
}
