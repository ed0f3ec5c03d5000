package proc

import (
	"unsafe"

	"defs"
	"hart"
)

// / initproc is the first process (spec.md §6 boot sequence); orphaned
// / children are reparented to it on exit so wait() always eventually
// / reaps them (spec.md §4.13 exit: "reparent children to initproc").
var initproc *Proc_t

// / SetInitproc records the boot-time initial process as the reparent
// / target for orphaned children. Called once by Userinit.
func SetInitproc(p *Proc_t) {
	initproc = p
}

// / Exit implements spec.md §4.13 exit(status): close every open file,
// / release the cwd reference, reparent live children to initproc, wake
// / whichever process (if any) is waiting on this one, mark the slot
// / Zombie, and switch away forever -- Exit never returns to its caller.
func Exit(status int) {
	p := Curproc()
	if p == initproc {
		panic("init exiting")
	}

	for i, f := range p.Fds {
		if f == nil {
			continue
		}
		f.Fops.Close()
		p.Fds[i] = nil
	}
	if p.Cwd != nil {
		p.Cwd.Fd.Fops.Close()
		p.Cwd = nil
	}

	ptable.Lock()
	for _, c := range ptable.procs {
		c.Acquire()
		if c.Parent == p {
			c.Parent = initproc
			if c.state == Zombie {
				Wakeup(unsafe.Pointer(initproc))
			}
		}
		c.Release()
	}
	ptable.Unlock()

	p.Acquire()
	p.status = status
	parent := p.Parent
	p.state = Zombie
	p.Release()

	if parent != nil {
		Wakeup(unsafe.Pointer(parent))
	}

	p.Acquire()
	hart.Swtch(&p.Ctx, &cpus[hart.Hartid()].scheduler)
	panic("zombie exited")
}

// / Wait implements spec.md §4.13 wait(): block until some child becomes
// / a Zombie, then harvest its resources (page table, trapframe, kernel
// / stack, slot) and return its pid and exit status. Returns -ECHILD
// / immediately if the calling process has no children at all.
func Wait(p *Proc_t) (defs.Pid_t, int, defs.Err_t) {
	for {
		havekids := false
		ptable.Lock()
		for _, c := range ptable.procs {
			c.Acquire()
			if c.Parent != p {
				c.Release()
				continue
			}
			havekids = true
			if c.state == Zombie {
				pid := c.Pid
				st := c.status
				c.Release()
				ptable.Unlock()
				c.free()
				return pid, st, 0
			}
			c.Release()
		}
		ptable.Unlock()

		if !havekids || p.Killed() {
			return 0, 0, -defs.ECHILD
		}
		Sleep(unsafe.Pointer(p), &ptableLocker{})
	}
}

// ptableLocker adapts ptable's sync.Mutex to proc.Sleep's sync.Locker
// parameter: wait() holds no lock of its own across the scan above (each
// iteration takes and releases ptable.Lock() itself), so there is
// nothing to release/reacquire here beyond a no-op pair -- matching
// xv6's wait(), which sleeps on ptable.lock itself, a lock this
// function no longer holds when it calls Sleep.
type ptableLocker struct{}

func (*ptableLocker) Lock()   {}
func (*ptableLocker) Unlock() {}
