package vm

import "mem"

// Software-defined and hardware Sv39 PTE bits used by this package's
// page-table/page-fault machinery. The hardware bits are aliases of
// mem's Sv39 flag layout (kept distinct names here since this package's
// copy-on-write fault handler predates the mem/vm split and still reads
// naturally against the teacher's original x86 PTE_* names). PTE_COW
// and PTE_WASCOW are new: they claim two of Sv39's reserved-for-software
// (RSW) PTE bits, 8 and 9, which the hardware never inspects, the same
// trick xv6-riscv's "cow" lab variant uses for copy-on-write bookkeeping.
const (
	PTE_P mem.Pa_t = mem.PTE_V
	PTE_R mem.Pa_t = mem.PTE_R
	PTE_W mem.Pa_t = mem.PTE_W
	PTE_X mem.Pa_t = mem.PTE_X
	PTE_U mem.Pa_t = mem.PTE_U
	PTE_G mem.Pa_t = mem.PTE_G
	PTE_A mem.Pa_t = mem.PTE_A
	PTE_D mem.Pa_t = mem.PTE_D

	PTE_COW    mem.Pa_t = 1 << 8
	PTE_WASCOW mem.Pa_t = 1 << 9

	// PTE_PS/PTE_PCD are x86-only concepts (superpage, cache-disable)
	// with no Sv39 equivalent; kept as zero-valued placeholders so the
	// bitmask expressions built from the teacher's original perm-check
	// code still type-check unchanged.
	PTE_PS  mem.Pa_t = 0
	PTE_PCD mem.Pa_t = 0
)

// / PGOFFSET/PGSHIFT alias mem's page-granularity constants under the
// / unqualified names this package's address-space code was written
// / against.
const (
	PGOFFSET = mem.PGOFFSET
	PGSHIFT  = mem.PGSHIFT
)

// / PTE_ADDR extracts the physical page address a Sv39 PTE encodes,
// / undoing PA2PTE's PPN shift (mem.PTE_ADDR does the same shift; this
// / wrapper exists so call sites written against the unqualified name
// / keep working without mem. prefixes scattered through as.go).
func PTE_ADDR(pte mem.Pa_t) mem.Pa_t {
	return mem.PTE_ADDR(pte)
}
