// Package fdops defines the interfaces that every open-file backing
// (inode, pipe, device, socket) implements so package fd's Fd_t can hold
// any of them behind one field, and package vm can mmap any of them
// without depending on package fs. Grounded on the teacher's own
// fdops-as-leaf-interface-package convention (biscuit/src/fdops exists
// purely to hold the Fdops_i contract so fs/pipe/fd/vm can all depend on
// it without depending on each other) and on the call sites already
// written against it in vm/as.go (Vmadd_file's fops argument) and
// circbuf/circbuf.go (Userio_i).
package fdops

import "stat"

import "defs"
import "mem"

// / Userio_i is satisfied by anything that can serve as the kernel-side
// / or user-side endpoint of a copy: vm.Userbuf_t, vm.Useriovec_t,
// / vm.Fakeubuf_t, or a future pure in-kernel buffer.
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}

// / Fdops_i is the operations table behind an open file descriptor
// / (spec.md §3 File object, §4.11). Every Fd_t's Fops field holds one of
// / these; fs.File_t (inode-backed), pipe.Pipefops_t, a device's small
// / wrapper, and usock.Sockfops_t are the concrete implementations.
// / Operations that make no sense for a given kind (e.g. Accept on a
// / plain file) return a fixed error rather than being absent, so
// / dispatch in package sysc never needs a type switch.
type Fdops_i interface {
	// / Read copies from the descriptor into dst, returning the number
	// / of bytes transferred.
	Read(dst Userio_i) (int, defs.Err_t)
	// / Write copies from src into the descriptor, returning the number
	// / of bytes transferred.
	Write(src Userio_i) (int, defs.Err_t)
	// / Pread copies from the descriptor at a fixed offset into dst
	// / without touching the descriptor's shared cursor, the way
	// / lazy_mmap's page-in (spec.md §4.7) reads a single page at
	// / (fault_page - start) regardless of where the mapping file's
	// / read/write offset happens to be.
	Pread(dst Userio_i, offset int) (int, defs.Err_t)
	// / Fstat fills in st with this descriptor's metadata.
	Fstat(st *stat.Stat_t) defs.Err_t
	// / Mmapi returns the physical pages backing [offset, offset+len) so
	// / vm's lazy-fault handler can map them, or allocates/reads them in
	// / now if the implementation has no lazy path of its own.
	Mmapi(offset, len int, inc bool) ([]mem.Mmapinfo_t, defs.Err_t)
	// / Close drops this descriptor's reference to its backing object,
	// / running kind-specific teardown when the last reference goes away.
	Close() defs.Err_t
	// / Reopen bumps the backing object's reference count; used by dup,
	// / fork, and Copyfd to create an independent Fd_t sharing state.
	Reopen() defs.Err_t
	// / Accept, Bind, and Connect implement the local socket syscalls
	// / (spec.md §6 socket/bind/connect). Non-socket kinds return
	// / -defs.ENOTSOCK.
	Accept(Userio_i) (Userio_i, defs.Err_t)
	Bind(Userio_i) defs.Err_t
	Connect(Userio_i) defs.Err_t
	// / Listen marks a bound socket ready to accept connections;
	// / non-socket/unbound kinds return -defs.ENOTSOCK/-defs.EINVAL.
	Listen(backlog int) defs.Err_t
	// / Truncate resizes the backing object to newlen; non-regular-file
	// / kinds return -defs.EINVAL.
	Truncate(newlen uint) defs.Err_t
}

// / NullFdops_t embeds into a concrete Fdops_i implementation so it only
// / needs to override the handful of methods that apply to it; every
// / socket-only or mmap-only stub stays in one place instead of being
// / copy-pasted into every device and pipe implementation. Grounded on
// / the teacher's pattern of small per-device fdops wrappers
// / (biscuit's console/null device files) that implement most of
// / Fdops_i as fixed errors.
type NullFdops_t struct{}

func (NullFdops_t) Accept(Userio_i) (Userio_i, defs.Err_t) { return nil, -defs.ENOTSOCK }
func (NullFdops_t) Bind(Userio_i) defs.Err_t                { return -defs.ENOTSOCK }
func (NullFdops_t) Connect(Userio_i) defs.Err_t             { return -defs.ENOTSOCK }
func (NullFdops_t) Listen(int) defs.Err_t                   { return -defs.ENOTSOCK }
func (NullFdops_t) Truncate(uint) defs.Err_t                { return -defs.EINVAL }
func (NullFdops_t) Mmapi(int, int, bool) ([]mem.Mmapinfo_t, defs.Err_t) {
	return nil, -defs.EINVAL
}
func (NullFdops_t) Pread(Userio_i, int) (int, defs.Err_t) { return 0, -defs.ESPIPE }
