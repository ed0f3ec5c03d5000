// Package sysc dispatches ecall traps to the syscall table described in
// spec.md §4.6/§6: argument fetch from the trapframe (a0-a5), pointer
// validation via the page table, and the table of handlers themselves.
// It depends on proc for everything process-control related and wires
// its dispatcher back into proc's user-trap path via
// proc.RegisterSyscall -- the same cycle-avoidance trick proc itself
// uses for lock/pipe/uart/fs.
package sysc

import (
	"defs"
	"fd"
	"fdops"
	"proc"
)

// / sysargs_t bundles one syscall's argument registers together with
// / the calling process, so the fetch helpers below don't need to take
// / both separately.
type sysargs_t struct {
	p    *proc.Proc_t
	a0   int
	a1   int
	a2   int
	a3   int
	a4   int
	a5   int
}

func fetchargs(p *proc.Proc_t) sysargs_t {
	tf := p.Tf()
	return sysargs_t{
		p:  p,
		a0: int(int64(tf.A0)),
		a1: int(int64(tf.A1)),
		a2: int(int64(tf.A2)),
		a3: int(int64(tf.A3)),
		a4: int(int64(tf.A4)),
		a5: int(int64(tf.A5)),
	}
}

// / Argint returns the i'th syscall argument (0-5) as a plain integer
// / (spec.md §6: "arguments are read from trapframe a0-a5").
func (sa *sysargs_t) Argint(i int) int {
	switch i {
	case 0:
		return sa.a0
	case 1:
		return sa.a1
	case 2:
		return sa.a2
	case 3:
		return sa.a3
	case 4:
		return sa.a4
	case 5:
		return sa.a5
	default:
		panic("bad syscall arg index")
	}
}

// / Argstr fetches a NUL-terminated path string from the i'th argument,
// / bounded by defs.PATHMAX (spec.md §6 "pointer arguments are validated
// / and copied in/out through the page table, with strnlen equivalent
// / for NUL-terminated strings").
func (sa *sysargs_t) Argstr(i int) (string, defs.Err_t) {
	uva := sa.Argint(i)
	u, err := sa.p.Vm.Userstr(uva, defs.PATHMAX)
	if err != 0 {
		return "", err
	}
	return u.String(), 0
}

// / Argfd resolves the i'th argument as an open file descriptor number,
// / returning -defs.EBADF if it is out of range or not open.
func (sa *sysargs_t) Argfd(i int) (int, *fd.Fd_t, defs.Err_t) {
	fdn := sa.Argint(i)
	if fdn < 0 || fdn >= proc.NOFILE {
		return 0, nil, -defs.EBADF
	}
	f := sa.p.Fds[fdn]
	if f == nil {
		return 0, nil, -defs.EBADF
	}
	return fdn, f, 0
}

// / Argbuf wraps the n bytes of user memory starting at the i'th
// / argument's address as a Userio_i, for read/write syscalls and
// / anything else that copies to/from a userspace buffer that may span
// / more than one page (spec.md §4.2 copyin/copyout, one page at a
// / time).
func (sa *sysargs_t) Argbuf(i, n int) fdops.Userio_i {
	return sa.p.Vm.Mkuserbuf(sa.Argint(i), n)
}
