package pipe

import (
	"testing"
	"unsafe"

	"defs"
	"mem"
)

// / fakePages_t is a host-only mem.Page_i standing in for mem.Physmem,
// / which requires a booted kernel's direct-mapped address space.
// / MkPipe hardcodes mem.Physmem, so these tests build a Pipe_t
// / directly (same package, unexported fields reachable) to keep the
// / ring buffer's backing store host-testable.
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

func mkTestPipe() (*pipeFops_t, *pipeFops_t) {
	p := &Pipe_t{readOpen: 1, writeOpen: 1}
	p.cb.Cb_init(PIPESZ, mkFakePages())
	return &pipeFops_t{p: p, writer: false}, &pipeFops_t{p: p, writer: true}
}

func init() {
	// None of the tests below exercises a path that blocks (writes stay under
	// PIPESZ and reads never race an empty, still-open buffer), so the
	// sleep hook only needs to exist, never actually fire.
	RegisterSched(
		func(chan_ unsafe.Pointer, lk Locker_i) { panic("unexpected sleep in pipe test") },
		func(chan_ unsafe.Pointer) {},
		func() bool { return false },
	)
}

func TestPipeWriteRead(t *testing.T) {
	rd, wr := mkTestPipe()
	payload := []byte("hello pipe")
	n, err := wr.Write(&sliceUio_t{buf: payload})
	if err != 0 || n != len(payload) {
		t.Fatalf("write: n=%d err=%d", n, err)
	}
	out := make([]byte, len(payload))
	n, err = rd.Read(&sliceUio_t{buf: out})
	if err != 0 || n != len(payload) {
		t.Fatalf("read: n=%d err=%d", n, err)
	}
	if string(out) != string(payload) {
		t.Fatalf("got %q, want %q", out, payload)
	}
}

func TestPipeEOFAfterWriterCloses(t *testing.T) {
	rd, wr := mkTestPipe()
	wr.Close()
	out := make([]byte, 4)
	n, err := rd.Read(&sliceUio_t{buf: out})
	if err != 0 || n != 0 {
		t.Fatalf("expected EOF (0, 0) after writer close, got n=%d err=%d", n, err)
	}
}

func TestPipeEPIPEAfterReaderCloses(t *testing.T) {
	rd, wr := mkTestPipe()
	rd.Close()
	n, err := wr.Write(&sliceUio_t{buf: []byte("x")})
	if err != -defs.EPIPE {
		t.Fatalf("expected EPIPE, got n=%d err=%d", n, err)
	}
}
