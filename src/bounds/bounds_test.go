package bounds

import "testing"

func TestBoundsReturnsRegisteredCaps(t *testing.T) {
	if Bounds(B_FS_T_NAMEI) != 64 {
		t.Fatalf("B_FS_T_NAMEI cap = %d, want 64", Bounds(B_FS_T_NAMEI))
	}
	if Bounds(B_LOG_T_LOG_WRITE) != 4096 {
		t.Fatalf("B_LOG_T_LOG_WRITE cap = %d, want 4096", Bounds(B_LOG_T_LOG_WRITE))
	}
}

func TestEveryBoundHasANonzeroCap(t *testing.T) {
	ids := []Bound{
		B_ASPACE_T_K2USER_INNER, B_ASPACE_T_USER2K_INNER,
		B_USERBUF_T__TX, B_USERIOVEC_T_IOV_INIT, B_USERIOVEC_T__TX,
		B_FS_T_NAMEI, B_FS_T_WRITEI, B_FS_T_READI,
		B_LOG_T_LOG_WRITE, B_PIPE_T_OP_WRITE,
	}
	for _, id := range ids {
		if Bounds(id) == 0 {
			t.Errorf("Bound %d has a zero cap", id)
		}
	}
}
