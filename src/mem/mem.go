// Package mem is the physical page allocator: a free list of 4KB pages
// carved out of the RAM QEMU's virt machine hands the kernel at boot,
// reference-counted so a page shared by fork()'d address spaces (or
// dma'd into page-table pages) is freed only once its last user drops it.
// Adapted from the teacher's mem/mem.go (same free-list/refcount
// algorithm, same per-hart free-list sharding to avoid a single global
// lock on every page fault) with the x86-specific PML4/cr3 framing and
// patched-runtime hooks (runtime.Get_phys, runtime.CPUHint) replaced by
// the RISC-V Sv39 equivalents: a PHYSTOP..kernel-end range and hart.Hartid.
package mem

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"hart"
	"util"
)

// / PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// / PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// / PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

// / PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

// Sv39 PTE flag bits (riscv-privileged, Sv39 leaf/non-leaf PTE format).
const (
	PTE_V Pa_t = 1 << 0 // valid
	PTE_P Pa_t = PTE_V  // alias: "present" in spec/teacher terms is V here
	PTE_R Pa_t = 1 << 1
	PTE_W Pa_t = 1 << 2
	PTE_X Pa_t = 1 << 3
	PTE_U Pa_t = 1 << 4
	PTE_G Pa_t = 1 << 5
	PTE_A Pa_t = 1 << 6
	PTE_D Pa_t = 1 << 7
)

// / PTE_ADDR extracts the PPN field of a Sv39 PTE and shifts it back into
// / a physical address (PTE bits 10..53 hold PPN[2:0], each PPN level
// / 9 bits, shifted left 2 from its in-PTE position).
const PTE_ADDR_SHIFT = 10

func PTE_ADDR(pte Pa_t) Pa_t {
	return (pte >> PTE_ADDR_SHIFT) << PGSHIFT
}

func PA2PTE(pa Pa_t) Pa_t {
	return (pa >> PGSHIFT) << PTE_ADDR_SHIFT
}

// / Pa_t represents a physical address.
type Pa_t uintptr

// / Bytepg_t is a byte addressed page.
type Bytepg_t [PGSIZE]uint8

// / Pg_t is a generic page of ints.
type Pg_t [512]int

// / Pmap_t is a Sv39 page-table page: 512 64-bit PTEs.
type Pmap_t [512]Pa_t

// / Unpin_i allows unpinning of physical pages.
type Unpin_i interface {
	Unpin(Pa_t)
}

// / Mmapinfo_t describes a mapping created by the runtime.
type Mmapinfo_t struct {
	Pg   *Pg_t
	Phys Pa_t
}

// / Page_i abstracts physical page allocation.
type Page_i interface {
	Refpg_new() (*Pg_t, Pa_t, bool)
	Refpg_new_nozero() (*Pg_t, Pa_t, bool)
	Refcnt(Pa_t) int
	Dmap(Pa_t) *Pg_t
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

// / Pg2bytes converts a page of ints to a page of bytes.
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

// / Bytepg2pg converts a byte page back to a Pg_t.
func Bytepg2pg(pg *Bytepg_t) *Pg_t {
	return (*Pg_t)(unsafe.Pointer(pg))
}

func pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

func _pg2pgn(p_pg Pa_t) uint32 {
	return uint32(p_pg >> PGSHIFT)
}

// / Refaddr returns the refcount pointer and index for the given page.
func (phys *Physmem_t) Refaddr(p_pg Pa_t) (*int32, uint32) {
	idx := _pg2pgn(p_pg) - phys.startn
	return &phys.Pgs[idx].Refcnt, idx
}

// / Hartaddr returns the bitmask tracking which harts have this page
// / table loaded (via satp), for targeted sfence.vma shootdown.
func (phys *Physmem_t) Hartaddr(p_pg Pa_t) *uint64 {
	idx := _pg2pgn(p_pg) - phys.startn
	return &phys.Pgs[idx].Hartmask
}

// / Physpg_t describes a single physical page.
type Physpg_t struct {
	Refcnt int32
	// index into pgs of next page on free list
	nexti uint32
	// bitmask where bit n is set if hart n has this page (a page table)
	// loaded into satp
	Hartmask uint64
}

// / Physmem_t manages all physical memory for the system.
type Physmem_t struct {
	Pgs    []Physpg_t
	startn uint32
	// index into pgs of first free pg
	freei   uint32
	freelen int32
	pmaps   uint32
	// count of page-table pages in the list, not total pages in use by
	// all page tables
	pmaplen int32
	sync.Mutex
	Dmapinit bool
	percpu   [hart.NCPU]pcpuphys_t
}

type pcpuphys_t struct {
	sync.Mutex
	freei   uint32
	freelen int32
	pmaps   uint32
	pmaplen int32
}

func (pc *pcpuphys_t) percpu_init() {
	pc.freei = ^uint32(0)
	pc.pmaps = ^uint32(0)
	pc.freelen, pc.pmaplen = 0, 0
}

// returns true iff the page was added to the per-hart free list
func (phys *Physmem_t) _pcpu_put(idx uint32, ispmap bool) bool {
	me := hart.Hartid()
	mine := &phys.percpu[me]
	var fl *uint32
	var cnt *int32
	if ispmap {
		if mine.pmaplen >= 20 {
			return false
		}
		fl = &mine.pmaps
		cnt = &mine.pmaplen
	} else {
		if mine.freelen >= 100 {
			return false
		}
		fl = &mine.freei
		cnt = &mine.freelen
	}
	phys._phys_insert(fl, idx, mine, cnt)
	return true
}

func (phys *Physmem_t) _pcpu_new(ispmap bool) (*Pg_t, Pa_t, bool) {
	me := hart.Hartid()
	mine := &phys.percpu[me]
	fl := &mine.freei
	cnt := &mine.freelen
	if ispmap {
		fl = &mine.pmaps
		cnt = &mine.pmaplen
	}
	return phys._phys_new(fl, mine, cnt)
}

func (phys *Physmem_t) _refpg_new() (*Pg_t, Pa_t, bool) {
	if pg, p_pg, ok := phys._pcpu_new(false); ok {
		return pg, p_pg, ok
	}
	return phys._phys_new(&phys.freei, phys, &phys.freelen)
}

// / Refcnt returns the current reference count of a page.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	ref, _ := phys.Refaddr(p_pg)
	return int(atomic.LoadInt32(ref))
}

// / Refup increments the reference count of a page.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	ref, _ := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, 1)
	if c <= 0 {
		panic("mem: refup of freed page")
	}
}

// returns true if p_pg should be added to the free list and the index of
// the page in the pgs array
func (phys *Physmem_t) _refdec(p_pg Pa_t) (bool, uint32) {
	ref, idx := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, -1)
	if c < 0 {
		panic("mem: negative refcount")
	}
	return c == 0, idx
}

// / Refdown decrements the reference count of a page.
// / It returns true when the page is freed.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	return phys._phys_put(p_pg, false)
}

// / Zeropg is a global zero-filled page used for allocations.
var Zeropg *Pg_t

// / Refpg_new allocates a zeroed page and returns its mapping and address.
// / The returned page's refcount is not incremented.
func (phys *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	if !phys.Dmapinit {
		panic("refpg_new before dmap init")
	}
	pg, p_pg, ok := phys._refpg_new()
	if !ok {
		return nil, 0, false
	}
	*pg = *Zeropg
	return pg, p_pg, true
}

// / Refpg_new_nozero allocates an uninitialised page.
func (phys *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	pg, p_pg, ok := phys._refpg_new()
	if !ok {
		return nil, 0, false
	}
	return pg, p_pg, true
}

// / Pmap_new allocates a new page-table page.
func (phys *Physmem_t) Pmap_new() (*Pmap_t, Pa_t, bool) {
	a, b, ok := phys._pcpu_new(true)
	if !ok {
		a, b, ok = phys._phys_new(&phys.pmaps, phys, &phys.pmaplen)
	}
	if !ok {
		a, b, ok = phys.Refpg_new()
	}
	return pg2pmap(a), b, ok
}

func (phys *Physmem_t) _phys_new(fl *uint32, lock sync.Locker, cnt *int32) (*Pg_t, Pa_t, bool) {
	if !phys.Dmapinit {
		panic("mem: dmap not initialized")
	}

	var p_pg Pa_t
	var ok bool
	lock.Lock()
	ff := *fl
	if ff != ^uint32(0) {
		p_pg = Pa_t(ff+phys.startn) << PGSHIFT
		*fl = phys.Pgs[ff].nexti
		ok = true
		if phys.Pgs[ff].Refcnt < 0 {
			panic("mem: negative refcount on free list")
		}
		*cnt--
		if *cnt < 0 {
			panic("mem: free-list count underflow")
		}
	}
	lock.Unlock()
	if ok {
		return phys.Dmap(p_pg), p_pg, true
	}
	return nil, 0, false
}

func (phys *Physmem_t) _phys_insert(fl *uint32, idx uint32, lock sync.Locker, cnt *int32) {
	lock.Lock()
	phys.Pgs[idx].nexti = *fl
	*fl = idx
	*cnt++
	if *cnt < 0 {
		panic("mem: free-list count overflow")
	}
	lock.Unlock()
}

// returns true iff p_pg was added to the free list
func (phys *Physmem_t) _phys_put(p_pg Pa_t, ispmap bool) bool {
	if add, idx := phys._refdec(p_pg); add {
		if phys._pcpu_put(idx, ispmap) {
			return true
		}
		fl := &phys.freei
		cnt := &phys.freelen
		if ispmap {
			fl = &phys.pmaps
			cnt = &phys.pmaplen
		}
		phys._phys_insert(fl, idx, phys, cnt)
		return true
	}
	return false
}

// / Dec_pmap decreases the reference count of a page-table page, freeing
// / it once no hart has it loaded in satp.
func (phys *Physmem_t) Dec_pmap(p_pmap Pa_t) {
	phys._phys_put(p_pmap, true)
}

// / Dmap converts a physical address into its direct-mapped virtual
// / address. The kernel page table identity-maps physical RAM (Vdirect
// / is 0, see dmap.go), so the result is numerically the physical page
// / address and the kernel can read/write any page without walking its
// / own page table.
func (phys *Physmem_t) Dmap(p Pa_t) *Pg_t {
	pa := uintptr(p)
	if pa >= PHYSTOP {
		panic("mem: direct map not large enough")
	}

	v := Vdirect
	v += uintptr(util.Rounddown(int(pa), PGSIZE))
	return (*Pg_t)(unsafe.Pointer(v))
}

// / Dmap_v2p converts a direct-mapped virtual address back to a physical
// / address.
func (phys *Physmem_t) Dmap_v2p(v *Pg_t) Pa_t {
	va := (uintptr)(unsafe.Pointer(v))
	if va < Vdirect {
		panic("mem: address isn't in the direct map")
	}

	pa := va - Vdirect
	return Pa_t(pa)
}

// / Dmap8 returns a byte slice mapped to the given physical address.
func (phys *Physmem_t) Dmap8(p Pa_t) []uint8 {
	pg := phys.Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

// / Pgcount reports free page counts across harts.
func (phys *Physmem_t) Pgcount() (int, int, []int, []int) {
	phys.Lock()
	r1 := int(phys.freelen)
	r2 := phys.pmapcount(&phys.pmaps)
	phys.Unlock()

	var pcpg []int
	var pcpm []int
	for i := range phys.percpu {
		pc := &phys.percpu[i]
		pc.Lock()
		if pc.freelen|pc.pmaplen != 0 {
			pcpg = append(pcpg, int(pc.freelen))
			pml := phys.pmapcount(&pc.pmaps)
			pcpm = append(pcpm, pml)
		}
		pc.Unlock()
	}
	return r1, r2, pcpg, pcpm
}

func (phys *Physmem_t) _pmcount(root Pa_t, lev int) int {
	if lev == 0 {
		return 0
	}
	pg := pg2pmap(phys.Dmap(root))
	ret := 0
	for _, pte := range pg {
		if pte&PTE_U != 0 && pte&PTE_V != 0 {
			ret += 1 + phys._pmcount(PTE_ADDR(pte), lev-1)
		}
	}
	return ret
}

func (phys *Physmem_t) pmapcount(fl *uint32) int {
	c := 0
	for ni := *fl; ni != ^uint32(0); ni = phys.Pgs[ni].nexti {
		v := phys._pmcount(Pa_t(ni+phys.startn)<<PGSHIFT, 3)
		c += v
	}
	return c
}

// / Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

// / KernEnd is provided by the boot package: the first physical address
// / past the kernel's own image (text+data+bss+boot stacks), below which
// / pages must never be handed out by the allocator.
var KernEnd Pa_t

// / PHYSTOP is the top of the RAM QEMU's virt machine is configured with
// / (128MB starting at 0x80000000, the default `qemu-system-riscv64 -machine
// / virt` allotment without an explicit -m).
const PHYSTOP Pa_t = 0x80000000 + 128<<20

// / Phys_init carves [KernEnd, PHYSTOP) into the free-page list. KernEnd
// / must be set by the caller (the boot package, from its linker-provided
// / `end` symbol) before this runs.
func Phys_init(kernend Pa_t) *Physmem_t {
	KernEnd = kernend
	phys := Physmem
	first := Pa_t(util.Roundup(int(kernend), PGSIZE))
	npg := int(PHYSTOP-first) / PGSIZE
	phys.Pgs = make([]Physpg_t, npg)
	phys.startn = _pg2pgn(first)
	phys.freei = 0
	phys.freelen = 1
	phys.pmaps = ^uint32(0)
	phys.Pgs[0].Refcnt = 0
	phys.Pgs[0].nexti = ^uint32(0)
	last := phys.freei
	for i := 1; i < npg; i++ {
		phys.Pgs[i].Refcnt = 0
		phys.Pgs[last].nexti = uint32(i)
		phys.Pgs[i].nexti = ^uint32(0)
		last = uint32(i)
		phys.freelen++
	}
	fmt.Printf("mem: %v free pages (%vMB)\n", npg, npg>>8)
	for i := range phys.percpu {
		phys.percpu[i].percpu_init()
	}
	return phys
}
