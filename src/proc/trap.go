package proc

import (
	"fmt"

	"hart"
	"mem"
	"stats"
	"unsafe"
	"vm"
)

// syscallFn is package sysc's dispatcher, wired in via RegisterSyscall
// below: sysc depends on proc (Curproc, Fork, Exec, Exit, Wait, Kill,
// ...), so proc cannot import sysc back without a cycle. The same
// break-the-cycle indirection as lock.RegisterSched and friends.
var syscallFn func(p *Proc_t)

// / RegisterSyscall wires package sysc's syscall-table dispatcher into
// / the user-trap path. Called once at boot.
func RegisterSyscall(fn func(p *Proc_t)) {
	syscallFn = fn
}

// plicIntr, when non-nil, handles a supervisor-external interrupt
// (spec.md §4.6 "route to PLIC for device"). Nothing in this module
// sets it, so a supervisor-external interrupt runs no device handler:
// the UART's receive handler (uart.Intr) is not called from this trap
// path. The virtio block driver backing package fs's Disk_i is an
// external collaborator (spec.md §1) that completes its own requests
// over a plain Go channel (fs.Bdev_req_t.AckCh) rather than through
// this trap path.
var plicIntr func()

// / Trapinithart installs the kernel trap vector and enables the
// / timer/external/software supervisor interrupt lines for the calling
// / hart. Must run once per hart before that hart's Scheduler loop
// / starts.
func Trapinithart() {
	hart.W_stvec(uint64(funcPC(kernelvec)))
	hart.W_sie(hart.R_sie() | hart.SIE_SEIE | hart.SIE_STIE | hart.SIE_SSIE)
}

// / Usertrap handles a trap taken from user mode (spec.md §4.6),
// / entered by trampoline's uservec with the kernel trap vector not yet
// / installed. Classifies scause into syscall / page fault / device
// / interrupt / fatal and dispatches accordingly; returns via
// / Usertrapret unless the process exits or is killed.
func Usertrap() {
	if hart.R_sstatus()&hart.SSTATUS_SPP != 0 {
		panic("usertrap: not from user mode")
	}
	hart.W_stvec(uint64(funcPC(kernelvec)))

	p := Curproc()
	p.tf.Kernel_trap = uint64(funcPC(Usertrap))

	cause := hart.R_scause()
	switch {
	case hart.Scause_is_intr(cause):
		yield := devintr(cause)
		if yield {
			Yield()
		}
	case hart.Scause_code(cause) == hart.SCAUSE_ECALL_U:
		if p.Killed() {
			Exit(-1)
		}
		p.tf.Epc += 4
		hart.Intr_on()
		if syscallFn != nil {
			syscallFn(p)
		}
	case hart.Scause_code(cause) == hart.SCAUSE_LOAD_FAULT,
		hart.Scause_code(cause) == hart.SCAUSE_STORE_FAULT:
		fa := uintptr(hart.R_stval())
		var ecode uintptr
		if hart.Scause_code(cause) == hart.SCAUSE_STORE_FAULT {
			ecode = uintptr(vm.PTE_U | vm.PTE_W)
		} else {
			ecode = uintptr(vm.PTE_U)
		}
		if err := p.Vm.Pgfault(0, fa, ecode); err != 0 {
			fmt.Printf("pid %d %s: unhandled page fault at 0x%x (%v), killing\n",
				p.Pid, string(p.Name[:]), fa, err)
			p.Acquire()
			p.killed = true
			p.Release()
		}
	default:
		fmt.Printf("pid %d %s: unexpected scause 0x%x, killing\n",
			p.Pid, string(p.Name[:]), cause)
		p.Acquire()
		p.killed = true
		p.Release()
	}

	if p.Killed() {
		Exit(-1)
	}
	Usertrapret()
}

// / Usertrapret restores the trapframe's kernel-side fields (they may
// / have changed hart between entry and return if this process yielded)
// / and returns to user mode through the trampoline's userret stub
// / (spec.md §4.4).
func Usertrapret() {
	p := Curproc()
	hart.Intr_off()

	p.tf.Kernel_satp = hart.R_satp()
	p.tf.Kernel_sp = uint64(uintptr(kstackTop(p)))
	p.tf.Kernel_trap = uint64(funcPC(Usertrap))
	p.tf.Kernel_hartid = uint64(hart.Hartid())

	x := hart.R_sstatus()
	x &^= hart.SSTATUS_SPP
	x |= hart.SSTATUS_SPIE
	hart.W_sstatus(x)
	hart.W_sepc(p.tf.Epc)

	satp := mem.MakeSatp(p.Vm.P_pmap)
	userret(uint64(mem.TRAPFRAME), satp)
}

// kstackTop returns the virtual address one past the top of p's kernel
// stack (the trapframe's Kernel_sp, grown down from here).
func kstackTop(p *Proc_t) uintptr {
	return uintptr(unsafe.Pointer(&p.kstack[0])) + uintptr(len(p.kstack))
}

// / Kerneltrap handles a trap taken while already in supervisor mode
// / (spec.md §4.6 kernel vec): only interrupts are expected here, since
// / kernel code is non-preemptive and never itself faults in normal
// / operation. Interrupts go to devintr (a timer interrupt just records
// / the tick and never switches away here); an exception, or an
// / interrupt devintr does not recognize, panics.
func Kerneltrap() {
	sepc := hart.R_sepc()
	sstatus := hart.R_sstatus()
	cause := hart.R_scause()

	if sstatus&hart.SSTATUS_SPP == 0 {
		panic("kerneltrap: not from supervisor mode")
	}
	if !hart.Scause_is_intr(cause) {
		panic("kerneltrap: unexpected kernel-mode exception")
	}

	devintr(cause)

	hart.W_sepc(sepc)
	hart.W_sstatus(sstatus)
}

// / devintr classifies and handles a supervisor interrupt (spec.md
// / §4.6): the timer bumps the tick counter and wakes ticks-sleepers;
// / external interrupts are routed to the registered PLIC handler, if
// / any; anything else panics (spec.md §7 "unknown traps in kernel mode
// / ... panic"). Returns whether the calling hart's current process
// / should yield at its next user-mode checkpoint.
func devintr(cause uint64) bool {
	stats.Irqs++
	if code := cause &^ hart.SCAUSE_INTR_BIT; code < uint64(len(stats.Nirqs)) {
		stats.Nirqs[code]++
	}
	switch cause {
	case hart.SCAUSE_S_TIMER:
		Tick()
		hart.SBISetTimer(^uint64(0)) // caller reprograms the real deadline
		return true
	case hart.SCAUSE_S_EXTERNAL:
		if plicIntr != nil {
			plicIntr()
		}
		return false
	case hart.SCAUSE_S_SOFTWARE:
		return false
	default:
		panic("devintr: unrecognized interrupt")
	}
}
