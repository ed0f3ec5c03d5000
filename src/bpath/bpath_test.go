package bpath

import (
	"testing"

	"ustr"
)

func canon(s string) string {
	return Canonicalize(ustr.Ustr(s)).String()
}

func TestCanonicalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/", "/"},
		{"/a/b/c", "/a/b/c"},
		{"/a//b///c", "/a/b/c"},
		{"/a/./b", "/a/b"},
		{"/a/b/../c", "/a/c"},
		{"/../a", "/a"},
		{"a/../b", "b"},
		{"..", ".."},
		{"../..", "../.."},
		{"a/b/..", "a"},
		{"", "."},
	}
	for _, c := range cases {
		if got := canon(c.in); got != c.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSplit(t *testing.T) {
	parts := Split(ustr.Ustr("/a/b/c"))
	if len(parts) != 3 || parts[0].String() != "a" || parts[2].String() != "c" {
		t.Fatalf("unexpected split: %v", parts)
	}
	if len(Split(ustr.Ustr("/"))) != 0 {
		t.Fatalf("splitting '/' should yield no components")
	}
}

func TestDirnameBasename(t *testing.T) {
	if got := Dirname(ustr.Ustr("/a/b/c")).String(); got != "/a/b" {
		t.Fatalf("Dirname: got %q", got)
	}
	if got := Dirname(ustr.Ustr("nodir")).String(); got != "." {
		t.Fatalf("Dirname of relative leaf: got %q", got)
	}
	if got := Dirname(ustr.Ustr("/leaf")).String(); got != "/" {
		t.Fatalf("Dirname at root: got %q", got)
	}
	if got := Basename(ustr.Ustr("/a/b/c")).String(); got != "c" {
		t.Fatalf("Basename: got %q", got)
	}
}
