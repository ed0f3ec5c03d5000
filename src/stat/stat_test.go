package stat

import "testing"

func TestWriteReadFields(t *testing.T) {
	var st Stat_t
	st.Wdev(1)
	st.Wino(42)
	st.Wmode(0644)
	st.Wsize(1024)
	st.Wrdev(7)

	if st.Rino() != 42 {
		t.Fatalf("Rino() = %d, want 42", st.Rino())
	}
	if st.Mode() != 0644 {
		t.Fatalf("Mode() = %o, want 0644", st.Mode())
	}
	if st.Size() != 1024 {
		t.Fatalf("Size() = %d, want 1024", st.Size())
	}
	if st.Rdev() != 7 {
		t.Fatalf("Rdev() = %d, want 7", st.Rdev())
	}
}

func TestBytesLenStable(t *testing.T) {
	var st Stat_t
	st.Wsize(99)
	b := st.Bytes()
	if len(b) == 0 {
		t.Fatalf("Bytes() returned empty slice")
	}
	// Bytes() is meant to be copied out to userspace as a fixed-size
	// record; the length must not depend on field values.
	var st2 Stat_t
	st2.Wsize(1 << 40)
	if len(st2.Bytes()) != len(b) {
		t.Fatalf("Bytes() length varies with field values")
	}
}
