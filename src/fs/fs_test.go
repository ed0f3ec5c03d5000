package fs

import (
	"testing"

	"defs"
	"fdops"
	"ustr"
)

// / bufUio_t is a minimal in-memory fdops.Userio_i for tests, standing
// / in for vm.Userbuf_t without pulling package vm into fs's test
// / binary.
type bufUio_t struct {
	buf []byte
	off int
}

func mkBufUio(b []byte) *bufUio_t { return &bufUio_t{buf: b} }

func (u *bufUio_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.buf[u.off:])
	u.off += n
	return n, 0
}

func (u *bufUio_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.buf[u.off:], src)
	u.off += n
	return n, 0
}

func (u *bufUio_t) Remain() int  { return len(u.buf) - u.off }
func (u *bufUio_t) Totalsz() int { return len(u.buf) }

var _ fdops.Userio_i = (*bufUio_t)(nil)

func path(s string) ustr.Ustr {
	return ustr.MkUstrSlice([]uint8(s))
}

func TestFileCreateWriteRead(t *testing.T) {
	fs_ := mkTestFs(t)
	root, err := fs_.Root()
	if err != 0 {
		t.Fatalf("root: %d", err)
	}

	ip, err := fs_.Fs_open(path("/hello.txt"), defs.O_CREAT|defs.O_RDWR, root)
	if err != 0 {
		t.Fatalf("creating file: %d", err)
	}
	file := MkFile(ip, fs_, true, true, false)

	payload := []byte("hello, world")
	n, err := file.Write(mkBufUio(payload))
	if err != 0 || n != len(payload) {
		t.Fatalf("write: n=%d err=%d", n, err)
	}
	if err := file.Close(); err != 0 {
		t.Fatalf("close: %d", err)
	}

	ip2, err := fs_.Fs_open(path("/hello.txt"), defs.O_RDONLY, root)
	if err != 0 {
		t.Fatalf("reopening file: %d", err)
	}
	file2 := MkFile(ip2, fs_, true, false, false)
	out := make([]byte, len(payload))
	n, err = file2.Read(mkBufUio(out))
	if err != 0 {
		t.Fatalf("read: %d", err)
	}
	if n != len(payload) || string(out) != string(payload) {
		t.Fatalf("roundtrip mismatch: got %q want %q", out[:n], payload)
	}
	file2.Close()
}

func TestMkdirAndNamei(t *testing.T) {
	fs_ := mkTestFs(t)
	root, err := fs_.Root()
	if err != 0 {
		t.Fatalf("root: %d", err)
	}

	if err := fs_.Fs_mkdir(path("/sub"), root); err != 0 {
		t.Fatalf("mkdir: %d", err)
	}
	ip, err := fs_.Fs_open(path("/sub/leaf.txt"), defs.O_CREAT|defs.O_RDWR, root)
	if err != 0 {
		t.Fatalf("creating nested file: %d", err)
	}
	ip.Ilock()
	typ := ip.Type
	ip.Iunlock()
	if typ != I_FILE {
		t.Fatalf("got type %d, want I_FILE", typ)
	}

	dir, err := fs_.Namei(path("/sub"), root)
	if err != 0 {
		t.Fatalf("namei /sub: %d", err)
	}
	dir.Ilock()
	_, _, ok := dir.Dirlookup(path("leaf.txt"))
	dir.Iunlock()
	if !ok {
		t.Fatalf("leaf.txt not found in /sub")
	}
}

func TestUnlinkRemovesEntry(t *testing.T) {
	fs_ := mkTestFs(t)
	root, err := fs_.Root()
	if err != 0 {
		t.Fatalf("root: %d", err)
	}
	if _, err := fs_.Fs_open(path("/gone.txt"), defs.O_CREAT|defs.O_RDWR, root); err != 0 {
		t.Fatalf("creating file: %d", err)
	}
	if err := fs_.Fs_unlink(path("/gone.txt"), root); err != 0 {
		t.Fatalf("unlink: %d", err)
	}
	if _, err := fs_.Namei(path("/gone.txt"), root); err == 0 {
		t.Fatalf("expected /gone.txt to be gone")
	}
}
