// Package pipe implements the bounded in-kernel byte pipe (spec.md §3
// Pipe, §4.12): a fixed 512-byte ring buffer shared by a read end and a
// write end, each a Fdops_i so package fd can hold either behind a
// plain Fd_t. The ring buffer itself is package circbuf's Circbuf_t
// (spec.md §3's "one spinlock, two sleep channels" pipe is exactly
// circbuf's head/tail discipline plus a mutex and a pair of channels),
// reused rather than reimplemented; only the two sleep channels and the
// read-open/write-open bookkeeping are new.
package pipe

import (
	"sync"
	"unsafe"

	"circbuf"
	"defs"
	"fdops"
	"limits"
	"mem"
	"stat"
)

// / PIPESZ is the pipe's ring-buffer capacity in bytes (spec.md §3).
const PIPESZ = 512

// / Pipe_t is the shared state of one pipe, referenced by both of its
// / Fdops_i endpoints.
type Pipe_t struct {
	sync.Mutex
	cb        circbuf.Circbuf_t
	readOpen  int
	writeOpen int
}

// / MkPipe allocates a fresh pipe with both ends open and returns a
// / read-end and write-end Fdops_i (spec.md §4.12 pipealloc). Fails with
// / -ENOMEM once limits.Syslimit.Pipes many pipes are already live
// / system wide.
func MkPipe() (fdops.Fdops_i, fdops.Fdops_i, defs.Err_t) {
	if !limits.Syslimit.Pipes.Take() {
		return nil, nil, -defs.ENOMEM
	}
	p := &Pipe_t{readOpen: 1, writeOpen: 1}
	p.cb.Cb_init(PIPESZ, mem.Physmem)
	return &pipeFops_t{p: p, writer: false}, &pipeFops_t{p: p, writer: true}, 0
}

// chan_read and chan_write are opaque sleep-channel keys: one per pipe
// side, so waking readers never wakes writers and vice versa
// (spec.md §4.12).
func (p *Pipe_t) chan_read() unsafe.Pointer  { return unsafe.Pointer(&p.readOpen) }
func (p *Pipe_t) chan_write() unsafe.Pointer { return unsafe.Pointer(&p.writeOpen) }

// / pipeFops_t is the Fdops_i seen by a file descriptor referencing one
// / end of a pipe; writer selects which end this handle is.
type pipeFops_t struct {
	fdops.NullFdops_t
	p      *Pipe_t
	writer bool
}

var (
	sleepFn  func(chan_ unsafe.Pointer, lk Locker_i)
	wakeFn   func(chan_ unsafe.Pointer)
	killedFn func() bool
)

// / Locker_i is the minimal lock interface sleep needs: release the lock
// / before blocking, reacquire it on wake. sync.Mutex satisfies it.
type Locker_i interface {
	Lock()
	Unlock()
}

// / RegisterSched wires the scheduler's sleep/wakeup/kill-check
// / primitives into this package, the same indirection package lock uses
// / (lock.RegisterSched) to avoid pipe depending on proc.
func RegisterSched(sleep func(unsafe.Pointer, Locker_i), wake func(unsafe.Pointer), killed func() bool) {
	sleepFn, wakeFn, killedFn = sleep, wake, killed
}

// / Read implements piperead (spec.md §4.12): blocks while the buffer is
// / empty and the write end is still open; returns 0 (EOF) once the
// / write end has closed and the buffer has drained.
func (pf *pipeFops_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	p := pf.p
	p.Lock()
	defer p.Unlock()
	for p.cb.Empty() && p.writeOpen > 0 {
		if killedFn != nil && killedFn() {
			return 0, -defs.EINTR
		}
		sleepFn(p.chan_read(), p)
	}
	if p.cb.Empty() {
		return 0, 0
	}
	n, err := p.cb.Copyout(dst)
	wakeFn(p.chan_write())
	return n, err
}

// / Write implements pipewrite (spec.md §4.12): loops waking readers and
// / sleeping while the buffer is full and the read end remains open,
// / failing with EPIPE once the read end has closed.
func (pf *pipeFops_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	p := pf.p
	p.Lock()
	defer p.Unlock()
	n := 0
	for src.Remain() > 0 {
		if p.readOpen == 0 {
			wakeFn(p.chan_read())
			return n, -defs.EPIPE
		}
		if killedFn != nil && killedFn() {
			return n, -defs.EINTR
		}
		if p.cb.Full() {
			wakeFn(p.chan_read())
			sleepFn(p.chan_write(), p)
			continue
		}
		did, err := p.cb.Copyin(src)
		n += did
		wakeFn(p.chan_read())
		if err != 0 {
			return n, err
		}
		if did == 0 {
			break
		}
	}
	return n, 0
}

// / Fstat reports a FIFO-shaped stat: size is the number of unread
// / bytes currently buffered.
func (pf *pipeFops_t) Fstat(st *stat.Stat_t) defs.Err_t {
	pf.p.Lock()
	sz := pf.p.cb.Used()
	pf.p.Unlock()
	st.Wsize(uint(sz))
	return 0
}

// / Close drops this end's open count; when both ends are closed the
// / pipe's backing page is released and the Pipe_t itself becomes
// / unreachable.
func (pf *pipeFops_t) Close() defs.Err_t {
	p := pf.p
	p.Lock()
	if pf.writer {
		p.writeOpen--
		if p.writeOpen == 0 {
			wakeFn(p.chan_read())
		}
	} else {
		p.readOpen--
		if p.readOpen == 0 {
			wakeFn(p.chan_write())
		}
	}
	done := p.readOpen == 0 && p.writeOpen == 0
	p.Unlock()
	if done {
		p.cb.Cb_release()
		limits.Syslimit.Pipes.Give()
	}
	return 0
}

// / Reopen bumps the relevant end's open count (dup/fork copy the Fd_t,
// / so both descriptors share this same pipeFops_t and its Pipe_t).
func (pf *pipeFops_t) Reopen() defs.Err_t {
	p := pf.p
	p.Lock()
	if pf.writer {
		p.writeOpen++
	} else {
		p.readOpen++
	}
	p.Unlock()
	return 0
}

func (pf *pipeFops_t) Mmapi(int, int, bool) ([]mem.Mmapinfo_t, defs.Err_t) {
	return nil, -defs.ESPIPE
}

func (pf *pipeFops_t) Pread(fdops.Userio_i, int) (int, defs.Err_t) {
	return 0, -defs.ESPIPE
}
