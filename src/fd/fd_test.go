package fd

import (
	"testing"

	"defs"
	"fdops"
	"stat"
	"ustr"
)

// fakeFops_t is a minimal Fdops_i recording Reopen/Close calls so
// Copyfd and Close_panic can be exercised without a real backing file.
type fakeFops_t struct {
	fdops.NullFdops_t
	reopenErr defs.Err_t
	reopens   int
	closeErr  defs.Err_t
	closes    int
}

func (f *fakeFops_t) Read(fdops.Userio_i) (int, defs.Err_t)  { return 0, 0 }
func (f *fakeFops_t) Write(fdops.Userio_i) (int, defs.Err_t) { return 0, 0 }
func (f *fakeFops_t) Fstat(*stat.Stat_t) defs.Err_t          { return 0 }
func (f *fakeFops_t) Reopen() defs.Err_t {
	f.reopens++
	return f.reopenErr
}
func (f *fakeFops_t) Close() defs.Err_t {
	f.closes++
	return f.closeErr
}

func TestCopyfdReopensAndShares(t *testing.T) {
	backing := &fakeFops_t{}
	orig := &Fd_t{Fops: backing, Perms: FD_READ}

	cp, err := Copyfd(orig)
	if err != 0 {
		t.Fatalf("Copyfd: %d", err)
	}
	if cp.Fops != orig.Fops {
		t.Fatalf("Copyfd should share the same Fops reference")
	}
	if cp.Perms != orig.Perms {
		t.Fatalf("Copyfd should copy Perms")
	}
	if backing.reopens != 1 {
		t.Fatalf("Reopen called %d times, want 1", backing.reopens)
	}
}

func TestCopyfdPropagatesReopenError(t *testing.T) {
	backing := &fakeFops_t{reopenErr: -defs.EMFILE}
	orig := &Fd_t{Fops: backing}

	if _, err := Copyfd(orig); err != -defs.EMFILE {
		t.Fatalf("Copyfd err = %d, want -EMFILE", err)
	}
}

func TestClosePanicOnFailure(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Close_panic to panic on a failing Close")
		}
	}()
	f := &Fd_t{Fops: &fakeFops_t{closeErr: -defs.EIO}}
	Close_panic(f)
}

func TestClosePanicSucceeds(t *testing.T) {
	backing := &fakeFops_t{}
	f := &Fd_t{Fops: backing}
	Close_panic(f)
	if backing.closes != 1 {
		t.Fatalf("Close called %d times, want 1", backing.closes)
	}
}

func TestCwdFullpathAbsoluteUnchanged(t *testing.T) {
	cwd := MkRootCwd(&Fd_t{})
	abs := ustr.MkUstrSlice([]byte("/etc/passwd"))
	got := cwd.Fullpath(abs)
	if !got.Eq(abs) {
		t.Fatalf("Fullpath(%q) = %q, want unchanged absolute path", abs, got)
	}
}

func TestCwdFullpathRelativeJoinsCwd(t *testing.T) {
	cwd := MkRootCwd(&Fd_t{})
	cwd.Path = ustr.MkUstrSlice([]byte("/home/user"))
	rel := ustr.MkUstrSlice([]byte("file.txt"))

	got := cwd.Fullpath(rel)
	want := ustr.MkUstrSlice([]byte("/home/user/file.txt"))
	if !got.Eq(want) {
		t.Fatalf("Fullpath(%q) = %q, want %q", rel, got, want)
	}
}

func TestCwdCanonicalpathResolvesDotDot(t *testing.T) {
	cwd := MkRootCwd(&Fd_t{})
	cwd.Path = ustr.MkUstrSlice([]byte("/a/b"))
	rel := ustr.MkUstrSlice([]byte("../c"))

	got := cwd.Canonicalpath(rel)
	want := ustr.MkUstrSlice([]byte("/a/c"))
	if !got.Eq(want) {
		t.Fatalf("Canonicalpath(%q) = %q, want %q", rel, got, want)
	}
}

func TestMkRootCwdStartsAtRoot(t *testing.T) {
	fd := &Fd_t{}
	cwd := MkRootCwd(fd)
	if cwd.Fd != fd {
		t.Fatalf("MkRootCwd should store the passed-in fd")
	}
	if !cwd.Path.Eq(ustr.MkUstrRoot()) {
		t.Fatalf("MkRootCwd path = %q, want root", cwd.Path)
	}
}
