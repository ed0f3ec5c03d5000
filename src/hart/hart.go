// Package hart wraps the low-level, per-hart primitives that the rest of
// the kernel treats as opaque: reading which hart is currently executing,
// enabling/disabling supervisor interrupts on it, and switching between a
// process's kernel context and the hart's scheduler context. These are the
// "assembly seams" called out in spec.md §9: the Go declarations below have
// no body and are implemented in hart_riscv64.s, mirroring the way the
// teacher kernel exposes low-level primitives as bodyless Go funcs backed
// by its patched runtime (mem/dmap.go's runtime.Cpuid/runtime.Rcr4/
// runtime.Vtop, time/sleep.go's Sleep).
package hart

// / NCPU is the number of harts this kernel multiplexes (spec.md §5).
const NCPU = 3

// / Context holds the callee-saved registers that must survive a context
// / switch between a process's kernel stack and a hart's scheduler stack.
// / Layout matches what Swtch (hart_riscv64.s) saves/restores: ra, sp, then
// / the twelve callee-saved registers s0-s11.
type Context struct {
	Ra uint64
	Sp uint64

	S0  uint64
	S1  uint64
	S2  uint64
	S3  uint64
	S4  uint64
	S5  uint64
	S6  uint64
	S7  uint64
	S8  uint64
	S9  uint64
	S10 uint64
	S11 uint64
}

// / Swtch saves the caller's callee-saved registers into old and restores
// / them from new, then returns into whatever called Swtch(new, ...)
// / originally. Used only between a process's kernel context and its
// / hart's scheduler context (spec.md §4.4, §4.5).
func Swtch(old, new *Context)

// / Hartid returns the id (0..NCPU-1) of the hart executing this code.
// / Must be called with interrupts disabled: a hart migration between the
// / read and its use would return a stale answer.
func Hartid() int

// / Intr_on enables supervisor-mode interrupts on the calling hart.
func Intr_on()

// / Intr_off disables supervisor-mode interrupts on the calling hart.
func Intr_off()

// / Intr_get reports whether supervisor-mode interrupts are currently
// / enabled on the calling hart.
func Intr_get() bool

// / Sfence_vma flushes the TLB on the calling hart.
func Sfence_vma()

// / SBIRemoteSfenceVMA asks the SBI firmware's RFENCE extension to flush
// / the TLB on every hart set in hartmask (bit i == hart i), via an ecall
// / into M-mode. Used by vm.Tlbshoot when a page table is loaded on more
// / than just the calling hart.
func SBIRemoteSfenceVMA(hartmask uint64, startva uintptr, size uintptr)

// / SBISetTimer asks the SBI firmware's legacy TIME extension to raise
// / the next supervisor timer interrupt on the calling hart at the given
// / absolute mtime value. Package proc's clock tick (spec.md §4.6) calls
// / this at boot and after every timer interrupt to schedule the next
// / one; there is no in-kernel timervec since OpenSBI delivers supervisor
// / timer interrupts directly once delegated, unlike the M-mode
// / timervec trampoline bare-metal (non-SBI) RISC-V kernels need.
func SBISetTimer(when uint64)

// / Rdcycle reads the calling hart's cycle CSR, used by package stats to
// / time hot paths when its debug flags are enabled.
func Rdcycle() uint64

// Supervisor trap-handling CSR accessors, used by package proc's trap
// dispatch (spec.md §4.4/§4.6) to classify and resume from a trap. Bodies
// live in hart_riscv64.s beside the other CSR seams above.

// / R_scause reads the cause of the most recent trap into the calling hart.
func R_scause() uint64

// / R_stval reads the trap value (faulting address, bad instruction, ...)
// / associated with the most recent trap.
func R_stval() uint64

// / R_sepc reads the supervisor exception PC: the user pc at the point of
// / the trap, or the kernel pc for a trap taken in kernel mode.
func R_sepc() uint64

// / W_sepc sets the supervisor exception PC, consulted by sret.
func W_sepc(v uint64)

// / R_satp reads the current page-table root and paging mode.
func R_satp() uint64

// / W_satp installs a new page-table root, flushing the TLB so stale
// / translations under the old root are never observed.
func W_satp(v uint64)

// / W_stvec sets the trap vector: kernelvec while executing in the kernel,
// / the trampoline's uservec stub just before returning to user mode.
func W_stvec(v uint64)

// / R_sstatus / W_sstatus read and write the full sstatus CSR (SPP, SPIE,
// / SIE and friends), consulted/mutated when entering and leaving a trap.
func R_sstatus() uint64
func W_sstatus(v uint64)

// / R_sie / W_sie read and write the supervisor interrupt-enable CSR
// / (external/timer/software bits), set once at boot per hart.
func R_sie() uint64
func W_sie(v uint64)

// sstatus bits consulted by package proc's trap dispatch.
const (
	SSTATUS_SPP  = 1 << 8 // previous privilege mode, 1=supervisor
	SSTATUS_SPIE = 1 << 5 // previous interrupt-enable
	SSTATUS_SIE  = 1 << 1 // interrupt enable
)

// sie/sip bits: external (PLIC), timer, software interrupts.
const (
	SIE_SEIE = 1 << 9
	SIE_STIE = 1 << 5
	SIE_SSIE = 1 << 1
)

// scause values (top bit set means interrupt, not exception).
const (
	SCAUSE_INTR_BIT    = uint64(1) << 63
	SCAUSE_S_TIMER     = SCAUSE_INTR_BIT | 5
	SCAUSE_S_EXTERNAL  = SCAUSE_INTR_BIT | 9
	SCAUSE_S_SOFTWARE  = SCAUSE_INTR_BIT | 1
	SCAUSE_ECALL_U     = 8
	SCAUSE_LOAD_FAULT  = 13
	SCAUSE_STORE_FAULT = 15
)

// / Scause_is_intr reports whether a scause value denotes an interrupt
// / (as opposed to an exception).
func Scause_is_intr(c uint64) bool {
	return c&SCAUSE_INTR_BIT != 0
}

// / Scause_code strips the interrupt bit, leaving the exception/interrupt
// / number.
func Scause_code(c uint64) uint64 {
	return c &^ SCAUSE_INTR_BIT
}

// hartstate_t tracks, per hart, the depth of nested interrupt-disabling
// critical sections (the spinlock "noff" counter from spec.md §4.1/§8) and
// whether interrupts were enabled before the first nested disable.
type hartstate_t struct {
	Noff   int
	Intena bool
}

var harts [NCPU]hartstate_t

// / PushOff disables interrupts on the calling hart, incrementing its noff
// / depth. The first call in a nested sequence records whether interrupts
// / were on, so PopOff can restore exactly that state.
func PushOff() {
	old := Intr_get()
	Intr_off()
	h := &harts[Hartid()]
	if h.Noff == 0 {
		h.Intena = old
	}
	h.Noff++
}

// / PopOff decrements the calling hart's noff depth, re-enabling
// / interrupts only once it reaches zero and interrupts were on beforehand.
// / Panics if called without a matching PushOff or with interrupts already
// / enabled (spec.md §4.1: acquire must disable interrupts).
func PopOff() {
	h := &harts[Hartid()]
	if Intr_get() {
		panic("pop_off: interruptible")
	}
	if h.Noff < 1 {
		panic("pop_off: unbalanced")
	}
	h.Noff--
	if h.Noff == 0 && h.Intena {
		Intr_on()
	}
}

// / Noff reports the calling hart's current interrupt-disable depth. Used
// / by sleep() to assert it is invoked while holding exactly the caller's
// / own process lock (spec.md §8).
func Noff() int {
	return harts[Hartid()].Noff
}
