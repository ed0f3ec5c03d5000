package usock

import (
	"testing"
	"unsafe"

	"defs"
	"fdops"
	"mem"
)

// / fakePages_t is a host-only mem.Page_i standing in for mem.Physmem,
// / which requires a booted kernel's direct-mapped address space.
// / MkSocket hardcodes mem.Physmem, so these tests build a sock_t
// / directly (same package, unexported fields reachable) to keep the
// / mailbox's backing store host-testable.
type fakePages_t struct {
	next  mem.Pa_t
	pages map[mem.Pa_t]*mem.Pg_t
}

func mkFakePages() *fakePages_t {
	return &fakePages_t{next: 1, pages: map[mem.Pa_t]*mem.Pg_t{}}
}

func (f *fakePages_t) Refpg_new() (*mem.Pg_t, mem.Pa_t, bool) {
	return f.Refpg_new_nozero()
}
func (f *fakePages_t) Refpg_new_nozero() (*mem.Pg_t, mem.Pa_t, bool) {
	pa := f.next
	f.next++
	pg := &mem.Pg_t{}
	f.pages[pa] = pg
	return pg, pa, true
}
func (f *fakePages_t) Refcnt(mem.Pa_t) int        { return 1 }
func (f *fakePages_t) Dmap(pa mem.Pa_t) *mem.Pg_t { return f.pages[pa] }
func (f *fakePages_t) Refup(mem.Pa_t)             {}
func (f *fakePages_t) Refdown(mem.Pa_t) bool      { return false }

func mkTestSocket(t *testing.T) fdops.Fdops_i {
	t.Helper()
	s := &sock_t{}
	if err := s.cb.Cb_init(SOCKSZ, mkFakePages()); err != 0 {
		t.Fatalf("Cb_init: %d", err)
	}
	return &sockFops_t{s: s}
}

type sliceUio_t struct {
	buf []byte
	off int
}

func (u *sliceUio_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.buf[u.off:])
	u.off += n
	return n, 0
}
func (u *sliceUio_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.buf[u.off:], src)
	u.off += n
	return n, 0
}
func (u *sliceUio_t) Remain() int  { return len(u.buf) - u.off }
func (u *sliceUio_t) Totalsz() int { return len(u.buf) }

func nameBuf(s string) *sliceUio_t { return &sliceUio_t{buf: []byte(s)} }

func init() {
	RegisterSched(
		func(chan_ unsafe.Pointer, lk Locker_i) { panic("unexpected sleep in usock test") },
		func(chan_ unsafe.Pointer) {},
		func() bool { return false },
	)
}

func TestBindConnectWriteRead(t *testing.T) {
	serverFops := mkTestSocket(t)
	if err := serverFops.Bind(nameBuf("/svc/echo")); err != 0 {
		t.Fatalf("Bind: %d", err)
	}

	clientFops := mkTestSocket(t)
	if err := clientFops.Connect(nameBuf("/svc/echo")); err != 0 {
		t.Fatalf("Connect: %d", err)
	}

	payload := []byte("ping")
	n, err := clientFops.Write(&sliceUio_t{buf: payload})
	if err != 0 || n != len(payload) {
		t.Fatalf("Write: n=%d err=%d", n, err)
	}

	out := make([]byte, len(payload))
	n, err = serverFops.Read(&sliceUio_t{buf: out})
	if err != 0 || n != len(payload) {
		t.Fatalf("Read: n=%d err=%d", n, err)
	}
	if string(out) != string(payload) {
		t.Fatalf("got %q, want %q", out, payload)
	}
}

func TestConnectToUnboundNameFails(t *testing.T) {
	fops := mkTestSocket(t)
	if err := fops.Connect(nameBuf("/nothing/here")); err != -defs.ENOENT {
		t.Fatalf("expected ENOENT, got %d", err)
	}
}

func TestWriteWithoutConnectFails(t *testing.T) {
	fops := mkTestSocket(t)
	n, err := fops.Write(&sliceUio_t{buf: []byte("x")})
	if err != -defs.EPIPE || n != 0 {
		t.Fatalf("expected EPIPE, got n=%d err=%d", n, err)
	}
}

func TestDoubleBindSameNameFails(t *testing.T) {
	a := mkTestSocket(t)
	b := mkTestSocket(t)
	if err := a.Bind(nameBuf("/dup")); err != 0 {
		t.Fatalf("first Bind: %d", err)
	}
	if err := b.Bind(nameBuf("/dup")); err != -defs.EEXIST {
		t.Fatalf("expected EEXIST on duplicate bind, got %d", err)
	}
	a.Close()
}

func TestCloseUnregistersName(t *testing.T) {
	a := mkTestSocket(t)
	if err := a.Bind(nameBuf("/transient")); err != 0 {
		t.Fatalf("Bind: %d", err)
	}
	a.Close()

	b := mkTestSocket(t)
	if err := b.Bind(nameBuf("/transient")); err != 0 {
		t.Fatalf("expected name to be free after Close, got %d", err)
	}
}
