package limits

import "testing"

func TestTakenGivenRoundtrip(t *testing.T) {
	var s Sysatomic_t
	s.Given(10)
	if !s.Taken(4) {
		t.Fatalf("Taken(4) should succeed against a limit of 10")
	}
	// 6 remain; taking 10 more must fail and leave the limit untouched.
	if s.Taken(10) {
		t.Fatalf("Taken(10) should fail when only 6 remain")
	}
	if !s.Taken(6) {
		t.Fatalf("Taken(6) should succeed for the exact remainder")
	}
	if s.Taken(1) {
		t.Fatalf("limit should be exhausted")
	}
}

func TestTakeGiveOne(t *testing.T) {
	var s Sysatomic_t
	s.Give()
	if !s.Take() {
		t.Fatalf("Take() should succeed after one Give()")
	}
	if s.Take() {
		t.Fatalf("Take() should fail once exhausted")
	}
}

func TestMkSysLimitDefaults(t *testing.T) {
	l := MkSysLimit()
	if l.Sysprocs <= 0 || l.Blocks <= 0 {
		t.Fatalf("expected positive default limits, got %+v", l)
	}
}
