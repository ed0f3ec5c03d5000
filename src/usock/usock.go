// Package usock implements the local socket syscalls (spec.md §6
// socket/bind/connect): connected datagram endpoints rendezvousing
// through a name registry, exactly the same shape as a UNIX-domain
// datagram socket but with networking itself explicitly out of scope
// (spec.md §1 "Deliberately OUT of scope... networking"). Built on
// package circbuf's ring buffer, the same backing store package pipe
// already reuses for its two ends, rather than reimplementing a byte
// queue a third time.
package usock

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

// / SOCKSZ is one socket endpoint's mailbox capacity, sized the same as
// / a pipe (spec.md §3 Pipe: 512-byte ring buffer) since nothing in the
// / spec calls for a different figure.
const SOCKSZ = 512

// / sock_t is one socket's mailbox and connection state. bind/connect
// / only ever touch the name registry and the peer pointer; the data
// / path (Read/Write) only ever touches cb and peer.
type sock_t struct {
	sync.Mutex
	cb     circbuf.Circbuf_t
	peer   *sock_t
	bound  string
	closed bool
}

func (s *sock_t) chan_read() unsafe.Pointer { return unsafe.Pointer(s) }

var (
	reglk sync.Mutex
	reg   = map[string]*sock_t{}
)

var (
	sleepFn  func(chan_ unsafe.Pointer, lk Locker_i)
	wakeFn   func(chan_ unsafe.Pointer)
	killedFn func() bool
)

// / Locker_i mirrors pipe.Locker_i: the minimal lock interface sleep
// / needs, satisfied directly by sync.Mutex.
type Locker_i interface {
	Lock()
	Unlock()
}

// / RegisterSched wires the scheduler's sleep/wakeup/kill-check
// / primitives into this package, the same indirection every other
// / blocking leaf package (lock, pipe, uart, fs) uses to avoid importing
// / proc.
func RegisterSched(sleep func(unsafe.Pointer, Locker_i), wake func(unsafe.Pointer), killed func() bool) {
	sleepFn, wakeFn, killedFn = sleep, wake, killed
}

// / sockFops_t is the Fdops_i seen by a file descriptor referencing one
// / socket endpoint.
type sockFops_t struct {
	fdops.NullFdops_t
	s *sock_t
}

// / MkSocket allocates one unbound, unconnected datagram endpoint
// / (sys_socket). domain/typ/proto are accepted but unchecked: the
// / table has exactly one kind of endpoint, so there is nothing to
// / branch on yet.
func MkSocket(domain, typ, proto int) (fdops.Fdops_i, defs.Err_t) {
	if !limits.Syslimit.Socks.Take() {
		return nil, -defs.ENOMEM
	}
	s := &sock_t{}
	if err := s.cb.Cb_init(SOCKSZ, mem.Physmem); err != 0 {
		limits.Syslimit.Socks.Give()
		return nil, err
	}
	return &sockFops_t{s: s}, 0
}

func nameOf(addr fdops.Userio_i) (string, defs.Err_t) {
	n := addr.Remain()
	if n <= 0 || n > defs.PATHMAX {
		return "", -defs.EINVAL
	}
	buf := make([]uint8, n)
	if _, err := addr.Uioread(buf); err != 0 {
		return "", err
	}
	return string(buf), 0
}

// / Bind registers this endpoint's mailbox under addr's name (sys_bind),
// / so a later connect(addr) from another socket can find it. Binding an
// / already-bound name fails with -EADDRINUSE's local analogue, EEXIST,
// / since defs carries no network-specific errno set.
func (sf *sockFops_t) Bind(addr fdops.Userio_i) defs.Err_t {
	name, err := nameOf(addr)
	if err != 0 {
		return err
	}
	reglk.Lock()
	defer reglk.Unlock()
	if _, taken := reg[name]; taken {
		return -defs.EEXIST
	}
	reg[name] = sf.s
	sf.s.bound = name
	return 0
}

// / Connect links this endpoint to the socket bound at addr's name
// / (sys_connect), making Read/Write on either end deliver to the
// / other's mailbox. Connecting twice replaces the previous peer.
func (sf *sockFops_t) Connect(addr fdops.Userio_i) defs.Err_t {
	name, err := nameOf(addr)
	if err != 0 {
		return err
	}
	reglk.Lock()
	target, ok := reg[name]
	reglk.Unlock()
	if !ok {
		return -defs.ENOENT
	}
	sf.s.Lock()
	sf.s.peer = target
	sf.s.Unlock()
	return 0
}

// / Read drains this endpoint's own mailbox, blocking while it is empty
// / and this endpoint has not been closed. A peer's Close does not end
// / the wait.
func (sf *sockFops_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	s := sf.s
	s.Lock()
	defer s.Unlock()
	for s.cb.Empty() && !s.closed {
		if killedFn != nil && killedFn() {
			return 0, -defs.EINTR
		}
		sleepFn(s.chan_read(), s)
	}
	if s.cb.Empty() {
		return 0, 0
	}
	return s.cb.Copyout(dst)
}

// / Write copies src into the connected peer's mailbox (sys_write on a
// / connected socket); it fails with -EPIPE if nothing has connect(2)'d
// / yet.
func (sf *sockFops_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	sf.s.Lock()
	peer := sf.s.peer
	sf.s.Unlock()
	if peer == nil {
		return 0, -defs.EPIPE
	}
	peer.Lock()
	defer peer.Unlock()
	n := 0
	for src.Remain() > 0 {
		if peer.closed {
			return n, -defs.EPIPE
		}
		if peer.cb.Full() {
			wakeFn(peer.chan_read())
			sleepFn(peer.chan_read(), peer)
			continue
		}
		did, err := peer.cb.Copyin(src)
		n += did
		wakeFn(peer.chan_read())
		if err != 0 {
			return n, err
		}
		if did == 0 {
			break
		}
	}
	return n, 0
}

// / Fstat reports a socket-shaped stat: size is the number of unread
// / bytes currently buffered in this endpoint's own mailbox.
func (sf *sockFops_t) Fstat(st *stat.Stat_t) defs.Err_t {
	sf.s.Lock()
	sz := sf.s.cb.Used()
	sf.s.Unlock()
	st.Wsize(uint(sz))
	return 0
}

// / Close tears down this endpoint: unregisters its bound name (if any)
// / and releases its mailbox. Unlike a pipe's two-refcounted-ends, a
// / socket has exactly one owner, so close is unconditional.
func (sf *sockFops_t) Close() defs.Err_t {
	s := sf.s
	s.Lock()
	s.closed = true
	s.Unlock()
	wakeFn(s.chan_read())
	if s.bound != "" {
		reglk.Lock()
		if reg[s.bound] == s {
			delete(reg, s.bound)
		}
		reglk.Unlock()
	}
	s.cb.Cb_release()
	limits.Syslimit.Socks.Give()
	return 0
}

// / Reopen bumps nothing: sockets aren't shared across dup/fork in this
// / model (each fd gets its own mailbox from sys_socket), so Reopen is a
// / no-op rather than an error, matching what dup(2) on a socket fd
// / expects to succeed with.
func (sf *sockFops_t) Reopen() defs.Err_t {
	return 0
}

func (sf *sockFops_t) Mmapi(int, int, bool) ([]mem.Mmapinfo_t, defs.Err_t) {
	return nil, -defs.EINVAL
}

func (sf *sockFops_t) Pread(fdops.Userio_i, int) (int, defs.Err_t) {
	return 0, -defs.ESPIPE
}
