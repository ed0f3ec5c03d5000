package proc

import "unsafe"

import "mem"

// / Trapframe_t is the per-process page the trampoline saves user
// / registers into on U->S entry and restores them from on S->U return
// / (spec.md §3 Trapframe, §4.4). Field order and offsets are load-
// / bearing: trampoline.s indexes into this struct by raw byte offset
// / (40, 48, 56, ...) rather than through the Go type, so the layout
// / below must never be reordered without updating trampoline.s in
// / lockstep. Grounded on xv6-riscv's struct trapframe (kernel/proc.h).
type Trapframe_t struct {
	Kernel_satp   uint64 //  0: kernel page table
	Kernel_sp     uint64 //  8: top of this process's kernel stack
	Kernel_trap   uint64 // 16: address of Usertrap
	Epc           uint64 // 24: saved user pc
	Kernel_hartid uint64 // 32: this hart's id, so Usertrap can find it

	Ra uint64 //  40
	Sp uint64 //  48
	Gp uint64 //  56
	Tp uint64 //  64
	T0 uint64 //  72
	T1 uint64 //  80
	T2 uint64 //  88
	S0 uint64 //  96
	S1 uint64 // 104
	A0 uint64 // 112
	A1 uint64 // 120
	A2 uint64 // 128
	A3 uint64 // 136
	A4 uint64 // 144
	A5 uint64 // 152
	A6 uint64 // 160
	A7 uint64 // 168
	S2 uint64 // 176
	S3 uint64 // 184
	S4 uint64 // 192
	S5 uint64 // 200
	S6 uint64 // 208
	S7 uint64 // 216
	S8 uint64 // 224
	S9 uint64 // 232
	S10 uint64 // 240
	S11 uint64 // 248
	T3 uint64 // 256
	T4 uint64 // 264
	T5 uint64 // 272
	T6 uint64 // 280
}

// trampolineStart, uservec, userret, and kernelvec are bodyless Go
// funcs backed by trampoline.s: the "assembly seams" spec.md §9/§4.4
// calls out by name (trampoline entry/exit, kernel trap vector). Never
// called as ordinary Go functions; only their addresses matter.
func trampolineStart()
func uservec()
func userret(trapframe, satp uint64)
func kernelvec()

// funcPC extracts the entry address of a bodyless top-level function.
// A Go func value for a statically known function is, at the ABI
// level, a pointer to a read-only funcval record whose first word is
// that entry address; dereferencing twice through an unsafe.Pointer
// recovers it without calling the function. Used here because the
// kernel identity-maps its own RAM (mem.Vdirect == 0), so
// funcPC(trampolineStart) already equals the trampoline code's physical address: no separate
// virtual->physical translation is needed before installing the
// TRAMPOLINE alias PTE below.
func funcPC(f func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&f))
}

// / trampolinePhys returns the physical address of the page holding the
// / trampoline code (uservec/userret), rounded down to a page boundary.
// / Valid only after mem.Phys_init/mem.Kpgtbl_init have run, since the
// / kernel's own identity map is what makes "this function's link-time
// / address" and "its physical address" the same number.
func trampolinePhys() mem.Pa_t {
	pc := funcPC(trampolineStart)
	return mem.Pa_t(pc &^ uintptr(mem.PGOFFSET))
}

// / MapTrampoline installs the shared trampoline page into pmap at the
// / fixed virtual address mem.TRAMPOLINE, read+execute, never user-
// / accessible (spec.md §3 "trampoline page at the top of VA space...
// / R+X, no U"). Called once for the kernel's own page table
// / (mem.Kpgtblp) and again for every freshly built user page table
// / (vm.MkVm's caller, package proc's process-creation path).
func MapTrampoline(pmap *mem.Pmap_t) {
	pa := trampolinePhys()
	if !mem.Mapone(pmap, mem.TRAMPOLINE, pa, mem.PTE_R|mem.PTE_X) {
		panic("proc: map trampoline")
	}
}

// / MapTrapframe installs this process's Trapframe_t page into pmap at
// / the fixed virtual address mem.TRAPFRAME, read+write, never user-
// / accessible (spec.md §3).
func MapTrapframe(pmap *mem.Pmap_t, p_tf mem.Pa_t) {
	if !mem.Mapone(pmap, mem.TRAPFRAME, p_tf, mem.PTE_R|mem.PTE_W) {
		panic("proc: map trapframe")
	}
}

// / mktrapframe allocates and zeroes a fresh Trapframe_t page, returning
// / both its kernel-visible pointer (for field access from Go) and its
// / physical address (for MapTrapframe). Freed by vm's page-table
// / teardown once the last PTE referencing it (mem.TRAPFRAME in the
// / dying process's own table) is dropped in Uvmfree.
func mktrapframe() (*Trapframe_t, mem.Pa_t, bool) {
	pg, p_pg, ok := mem.Physmem.Refpg_new()
	if !ok {
		return nil, 0, false
	}
	return (*Trapframe_t)(unsafe.Pointer(pg)), p_pg, true
}
