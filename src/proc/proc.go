// Package proc owns the process table, scheduler, trap dispatch, and
// process lifecycle operations (fork/exec/exit/wait) described in
// spec.md §4.4-§4.6/§4.13 and §5. It is the package that "owns the
// scheduler" every other blocking package (lock, pipe, uart, fs) wires
// its sleep/wakeup primitives into via RegisterSched, the same
// import-cycle-avoidance trick used four times already; package sysc
// in turn depends on proc (never the reverse) for syscall argument
// access and process control, wired through RegisterSyscall below.
package proc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"accnt"
	"defs"
	"fd"
	"hart"
	"limits"
	"lock"
	"mem"
	"ustr"
	"vm"
)

// / NPROC is the size of the fixed process table (spec.md §3 "Fixed
// / table of N slots (N=64)").
const NPROC = 64

// / NOFILE is the number of file-descriptor slots per process (spec.md
// / §3 "array of 16 file-object slots").
const NOFILE = 16

// / State_t is a process slot's scheduling state (spec.md §3).
type State_t int

const (
	Unused State_t = iota
	Embryo
	Ready
	Running
	Sleeping
	Zombie
)

func (s State_t) String() string {
	switch s {
	case Unused:
		return "unused"
	case Embryo:
		return "embryo"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Zombie:
		return "zombie"
	default:
		return "???"
	}
}

// / Vmainfo_t describes one entry of a process's fixed mmap VMA table
// / (spec.md §3 "VMA table: fixed array of 100 entries, each {start,
// / end, size, prot, flags, fd} or empty"). Kept distinct from
// / vm.Vminfo_t (which tracks the page-table-facing view of a mapping
// / for fault resolution): this is the syscall-facing record mmap/munmap
// / manipulate, one per region regardless of how many pages it spans.
type Vmainfo_t struct {
	Used        bool
	Start, End  int
	Prot, Flags int
	Fd          int
}

// / NVMA is the fixed VMA table size (spec.md §3).
const NVMA = 100

// / Proc_t is one process-table slot (spec.md §3 Process slot). Its
// / embedded Spinlock_t ("one spinlock covering state/channel/
// / killed/pid/parent") must be held across any read or write of those
// / fields from another hart; everything else (Vm, Fds, Cwd, Env, Vmas)
// / is either fixed at fork/exec time or touched only by the owning hart
// / while the process is Running, per spec.md's "data field is behind an
// / interior-mutability protocol accessed only by the owning hart or
// / under the process lock".
type Proc_t struct {
	lock.Spinlock_t

	Pid    defs.Pid_t
	Parent *Proc_t
	Name   [16]byte

	state   State_t
	channel interface{}
	killed  bool
	status  int

	Vm  *vm.Vm_t
	Sz  int
	tf  *Trapframe_t
	p_tf mem.Pa_t

	kstack []byte
	Ctx    hart.Context

	Fds [NOFILE]*fd.Fd_t
	Cwd *fd.Cwd_t
	Env map[string]string
	Vmas [NVMA]Vmainfo_t

	CurMax uintptr

	Acct accnt.Accnt_t

	runningHart int
}

var (
	ptable struct {
		sync.Mutex
		procs [NPROC]*Proc_t
	}
	nextPid int64 = 1
)

func init() {
	for i := range ptable.procs {
		ptable.procs[i] = &Proc_t{}
	}
}

// / allocPid returns a fresh, never-before-used, nonzero pid (spec.md §3
// / "pid (monotonic)").
func allocPid() defs.Pid_t {
	return defs.Pid_t(atomic.AddInt64(&nextPid, 1) - 1)
}

// / allocproc scans the table for an Unused slot, marks it Embryo, and
// / gives it a pid, kernel stack, and trapframe (spec.md §4.5/§4.13
// / "allocate child slot"). Returns nil if the table is full or the
// / system wide process limit (limits.Syslimit.Sysprocs) is exhausted.
func allocproc() (*Proc_t, defs.Err_t) {
	ptable.Lock()
	defer ptable.Unlock()

	if !limits.Syslimit.Sysprocs.Take() {
		return nil, -defs.EAGAIN
	}

	for _, p := range ptable.procs {
		p.Acquire()
		if p.state != Unused {
			p.Release()
			continue
		}
		p.Pid = allocPid()
		p.state = Embryo
		p.Release()

		p.kstack = make([]byte, kstackSize)
		tf, p_tf, ok := mktrapframe()
		if !ok {
			p.free()
			return nil, -defs.ENOMEM
		}
		p.tf = tf
		p.p_tf = p_tf
		p.Env = make(map[string]string)
		return p, 0
	}
	limits.Syslimit.Sysprocs.Give()
	return nil, -defs.EAGAIN
}

const kstackSize = 4 * mem.PGSIZE

// / free returns a slot to Unused, releasing every resource allocproc or
// / fork/exec attached to it (spec.md §4.13 wait: "free page table,
// / trapframe, kstack, slot"). Caller must hold no locks on p; p must
// / not be Running.
func (p *Proc_t) free() {
	limits.Syslimit.Sysprocs.Give()
	if p.Vm != nil {
		p.Vm.Uvmfree()
		p.Vm = nil
	}
	if p.p_tf != 0 {
		mem.Physmem.Refdown(p.p_tf)
		p.p_tf = 0
	}
	p.tf = nil
	p.kstack = nil
	p.Acquire()
	p.state = Unused
	p.Pid = 0
	p.Parent = nil
	p.killed = false
	p.status = 0
	p.channel = nil
	p.Release()
}

// / Mkproc builds a fresh process from scratch: a new empty address
// / space with the trampoline and trapframe already mapped (spec.md §4.3
// / "every user root must have the trampoline and trapframe mapped...
// / before the process runs"). Its fd table starts empty: Mkproc opens
// / no console descriptors. Used for the initial process; fork
// / instead clones an existing one (see fork.go).
func Mkproc() (*Proc_t, defs.Err_t) {
	p, err := allocproc()
	if err != 0 {
		return nil, err
	}
	as, err := vm.MkVm()
	if err != 0 {
		p.free()
		return nil, err
	}
	MapTrampoline(as.Pmap)
	MapTrapframe(as.Pmap, p.p_tf)
	p.Vm = as
	p.CurMax = mem.TRAPFRAME
	return p, 0
}

// / Curproc returns the process the calling hart is currently executing
// / in the kernel context of. Valid only while a process (as opposed to
// / the idle scheduler context) is running on this hart.
func Curproc() *Proc_t {
	return cpus[hart.Hartid()].proc
}

// / Killed reports whether p has been asked to die (spec.md §5 "kill(pid)
// / sets a flag observed at every syscall entry/exit"). Takes p's lock.
func (p *Proc_t) Killed() bool {
	p.Acquire()
	k := p.killed
	p.Release()
	return k
}

// / Tf returns p's trapframe, for package sysc's argument fetch (a0-a5
// / and the eventual return-value write).
func (p *Proc_t) Tf() *Trapframe_t {
	return p.tf
}

// / Dump prints the process table for debugging (ctrl-p-style), mirroring
// / the teacher's own habit of a small diagnostic dump reachable from a
// / debug trigger rather than a real syscall.
func Dump() {
	ptable.Lock()
	defer ptable.Unlock()
	for _, p := range ptable.procs {
		p.Acquire()
		if p.state != Unused {
			fmt.Printf("%-4d %-10s %s\n", p.Pid, p.state, p.Name)
		}
		p.Release()
	}
}

func ustrName(u ustr.Ustr) [16]byte {
	var n [16]byte
	copy(n[:], u)
	return n
}
