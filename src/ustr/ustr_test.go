package ustr

import "testing"

func TestEq(t *testing.T) {
	a := Ustr("abc")
	b := Ustr("abc")
	c := Ustr("abd")
	if !a.Eq(b) {
		t.Fatalf("expected %q == %q", a, b)
	}
	if a.Eq(c) {
		t.Fatalf("expected %q != %q", a, c)
	}
	if a.Eq(Ustr("ab")) {
		t.Fatalf("expected different-length strings to differ")
	}
}

func TestIsdotIsdotdot(t *testing.T) {
	if !MkUstrDot().Isdot() {
		t.Fatalf("MkUstrDot should be dot")
	}
	if !DotDot.Isdotdot() {
		t.Fatalf("DotDot should be dotdot")
	}
	if Ustr("..x").Isdotdot() {
		t.Fatalf("'..x' should not be dotdot")
	}
}

func TestMkUstrSliceTruncatesAtNul(t *testing.T) {
	buf := []uint8{'f', 'o', 'o', 0, 'b', 'a', 'r'}
	got := MkUstrSlice(buf)
	if got.String() != "foo" {
		t.Fatalf("got %q, want %q", got.String(), "foo")
	}
}

func TestMkUstrSliceNoNul(t *testing.T) {
	buf := []uint8{'b', 'a', 'r'}
	got := MkUstrSlice(buf)
	if got.String() != "bar" {
		t.Fatalf("got %q, want %q", got.String(), "bar")
	}
}

func TestExtend(t *testing.T) {
	base := Ustr("/a")
	got := base.Extend(Ustr("b"))
	if got.String() != "/a/b" {
		t.Fatalf("got %q, want %q", got.String(), "/a/b")
	}
	// base must be unmodified by Extend.
	if base.String() != "/a" {
		t.Fatalf("Extend mutated its receiver: %q", base.String())
	}
}

func TestIsAbsolute(t *testing.T) {
	if !MkUstrRoot().IsAbsolute() {
		t.Fatalf("'/' should be absolute")
	}
	if Ustr("rel/path").IsAbsolute() {
		t.Fatalf("'rel/path' should not be absolute")
	}
	if MkUstr().IsAbsolute() {
		t.Fatalf("empty Ustr should not be absolute")
	}
}

func TestIndexByte(t *testing.T) {
	u := Ustr("a/b/c")
	if i := u.IndexByte('/'); i != 1 {
		t.Fatalf("got %d, want 1", i)
	}
	if i := u.IndexByte('z'); i != -1 {
		t.Fatalf("got %d, want -1", i)
	}
}
