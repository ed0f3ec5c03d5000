package accnt

import "testing"

func TestUtaddSystaddAccumulate(t *testing.T) {
	var a Accnt_t
	a.Utadd(100)
	a.Utadd(50)
	a.Systadd(7)
	if a.Userns != 150 {
		t.Fatalf("Userns = %d, want 150", a.Userns)
	}
	if a.Sysns != 7 {
		t.Fatalf("Sysns = %d, want 7", a.Sysns)
	}
}

func TestAddMerges(t *testing.T) {
	var a, b Accnt_t
	a.Utadd(10)
	a.Systadd(20)
	b.Utadd(1)
	b.Systadd(2)
	a.Add(&b)
	if a.Userns != 11 || a.Sysns != 22 {
		t.Fatalf("got userns=%d sysns=%d, want 11/22", a.Userns, a.Sysns)
	}
}

func TestToRusageLength(t *testing.T) {
	var a Accnt_t
	a.Utadd(1000000000) // 1 second
	a.Systadd(2000000000)
	ru := a.To_rusage()
	// Two timevals (user, sys), each a pair of 8-byte {sec, usec} words.
	if len(ru) != 4*8 {
		t.Fatalf("To_rusage() length = %d, want 32", len(ru))
	}
}
