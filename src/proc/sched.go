package proc

import (
	"sync"
	"unsafe"

	"defs"
	"fs"
	"hart"
	"lock"
	"mem"
	"pipe"
	"uart"
	"usock"
)

// / makeSatpFor returns the satp value that installs p's user page
// / table, for the scheduler to load before switching into it.
func makeSatpFor(p *Proc_t) uint64 {
	return mem.MakeSatp(p.Vm.P_pmap)
}

// / cpu_t is one hart's slice of the scheduler: the process it is
// / currently running (nil while idle) and the scheduler's own context,
// / switched to whenever that process yields, sleeps, or exits
// / (spec.md §4.5 "per-hart current-proc pointer, scheduler contexts").
type cpu_t struct {
	proc      *Proc_t
	scheduler hart.Context
}

var cpus [hart.NCPU]cpu_t

// / ticks is the global clock-interrupt counter (spec.md §4.6 Timer:
// / "record ticks (global counter under a lock)"). tickschan is its
// / sleep-channel key: sys_sleep(n) and anything else waiting on wall
// / time sleeps here and is woken on every tick.
var (
	tickslk  sync.Mutex
	ticks    uint64
	tickschan int
)

// / Init wires this package's sleep/wakeup/kill primitives into every
// / package that blocks without importing proc directly (spec.md §9
// / "Global mutable state" / the RegisterSched indirection documented
// / atop this package and in lock/pipe/uart/fs). Must run once at boot
// / before any process can sleep.
func Init() {
	lock.RegisterSched(sleepSpinlock, Wakeup)
	pipe.RegisterSched(sleepPipeLocker, Wakeup, killedCurrent)
	uart.RegisterSched(sleepUartLocker, Wakeup, killedCurrent)
	fs.RegisterSched(sleepFsLocker, Wakeup)
	usock.RegisterSched(sleepUsockLocker, Wakeup, killedCurrent)
}

func killedCurrent() bool {
	return Curproc().Killed()
}

// doSleep is shared by every sleepXxx wrapper below: it implements
// spec.md §4.5's sleep(chan, lock) exactly (acquire own proc lock,
// release the caller's lock, block, on wake reacquire the caller's
// lock), parameterized over the caller's lock only by how to
// release/reacquire it since Spinlock_t, pipe.Locker_i, uart.Locker_i,
// and fs.Locker_i all spell that differently.
func doSleep(chan_ unsafe.Pointer, release, reacquire func()) {
	p := Curproc()
	p.Acquire()
	release()
	p.channel = chan_
	p.state = Sleeping
	hart.Swtch(&p.Ctx, &cpus[hart.Hartid()].scheduler)
	p.channel = nil
	p.Release()
	reacquire()
}

func sleepSpinlock(chan_ unsafe.Pointer, lk *lock.Spinlock_t) {
	doSleep(chan_, lk.Release, lk.Acquire)
}

func sleepPipeLocker(chan_ unsafe.Pointer, lk pipe.Locker_i) {
	doSleep(chan_, lk.Unlock, lk.Lock)
}

func sleepUartLocker(chan_ unsafe.Pointer, lk uart.Locker_i) {
	doSleep(chan_, lk.Unlock, lk.Lock)
}

func sleepFsLocker(chan_ unsafe.Pointer, lk fs.Locker_i) {
	doSleep(chan_, lk.Unlock, lk.Lock)
}

func sleepUsockLocker(chan_ unsafe.Pointer, lk usock.Locker_i) {
	doSleep(chan_, lk.Unlock, lk.Lock)
}

// / Sleep blocks the calling process on chan, releasing lk first and
// / reacquiring it on wake (spec.md §4.5). Exported for sys_sleep (which
// / sleeps on the ticks channel) and anything else inside package proc
// / itself that needs to block on a plain sync.Locker.
func Sleep(chan_ unsafe.Pointer, lk sync.Locker) {
	doSleep(chan_, lk.Unlock, lk.Lock)
}

// / Wakeup scans the process table for every Sleeping process waiting on
// / chan and marks it Ready (spec.md §4.5 wakeup(chan): "any Sleeping
// / proc with matching channel -> Ready (under its own lock)").
func Wakeup(chan_ unsafe.Pointer) {
	for _, p := range ptable.procs {
		p.Acquire()
		if p.state == Sleeping && p.channel == chan_ {
			p.state = Ready
		}
		p.Release()
	}
}

// / Yield gives up the calling process's hart for one scheduling round
// / (spec.md §4.5 yield: "lock self, set Ready, swtch to scheduler,
// / unlock on return").
func Yield() {
	p := Curproc()
	p.Acquire()
	p.state = Ready
	hart.Swtch(&p.Ctx, &cpus[hart.Hartid()].scheduler)
	p.Release()
}

// / Kill marks pid for death (spec.md §4.5 kill(pid)): sets the killed
// / flag, and if the process is currently Sleeping, bumps it to Ready so
// / it observes the flag at its next checkpoint (pipe wait, log
// / congestion, ticks sleep, syscall entry/exit) instead of sleeping
// / forever. Returns -ESRCH if no live process has this pid.
func Kill(pid defs.Pid_t) defs.Err_t {
	for _, p := range ptable.procs {
		p.Acquire()
		if p.Pid == pid {
			p.killed = true
			if p.state == Sleeping {
				p.state = Ready
			}
			p.Release()
			return 0
		}
		p.Release()
	}
	return -defs.ESRCH
}

// / Scheduler is the per-hart idle loop (spec.md §4.5): briefly enable
// / interrupts so a timer interrupt can land, scan the table for a Ready
// / process, run it until it yields/sleeps/exits, repeat. Never returns;
// / call once per hart after that hart's trap vector and page table are
// / installed.
func Scheduler() {
	h := hart.Hartid()
	c := &cpus[h]
	for {
		hart.Intr_on()
		for _, p := range ptable.procs {
			p.Acquire()
			if p.state != Ready {
				p.Release()
				continue
			}
			p.state = Running
			p.runningHart = h
			c.proc = p
			hart.W_satp(makeSatpFor(p))
			hart.Sfence_vma()
			hart.Swtch(&c.scheduler, &p.Ctx)
			// p is back here because it yielded/slept/exited. The
			// scheduler took p's lock above and holds it across Swtch;
			// p releases it once its own Swtch returns (Yield,
			// doSleep) and takes it again before switching back, so
			// it is held here and released below.
			c.proc = nil
			p.Release()
		}
	}
}

// / Tick records one timer interrupt (spec.md §4.6 Timer): bumps the
// / global counter and wakes anything sleeping on it. It returns
// / nothing: devintr, its caller, reports the yield for a timer
// / interrupt, and only a user-mode timer trap acts on it (kernel-mode
// / traps merely record the tick per spec.md §4.5's non-preemption
// / rule).
func Tick() {
	tickslk.Lock()
	ticks++
	tickslk.Unlock()
	Wakeup(unsafe.Pointer(&tickschan))
}

// / Ticks returns the current tick count (sys_uptime).
func Ticks() uint64 {
	tickslk.Lock()
	defer tickslk.Unlock()
	return ticks
}

// / TicksChan returns the sleep-channel key sys_sleep(n) and Tick share.
func TicksChan() unsafe.Pointer {
	return unsafe.Pointer(&tickschan)
}

// / TicksLocker returns the lock guarding the tick counter, so sys_sleep
// / can pass it to Sleep alongside TicksChan.
func TicksLocker() sync.Locker {
	return &tickslk
}
