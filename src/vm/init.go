package vm

import "unsafe"

import "defs"
import "mem"
import "util"

// / MkVm allocates a fresh, empty address space: a new page-table root with
// / no mappings yet. The caller (package proc, building a process's initial
// / image or a forked child) is responsible for mapping the trampoline and
// / trapframe pages at their fixed high addresses before the process runs
// / (spec.md §4.3: "every user root must have the trampoline and trapframe
// / mapped at fixed high addresses before the process runs").
func MkVm() (*Vm_t, defs.Err_t) {
	root, p_pmap, ok := mem.Physmem.Pmap_new()
	if !ok {
		return nil, -defs.ENOMEM
	}
	return &Vm_t{Pmap: root, P_pmap: p_pmap}, 0
}

// heapVmi returns the VANON region representing the process's [0,Sz) linear
// program+heap, if Sbrk has ever grown it.
func (as *Vm_t) heapVmi() *Vminfo_t {
	vmi, ok := as.Vmregion.Lookup(0)
	if !ok || vmi.Pgn != 0 {
		return nil
	}
	return vmi
}

// / Sbrk implements spec.md §4.7's sbrk(n): grow or shrink the process's
// / linear [0,sz) region and return the old size. Unlike mmap, growth
// / allocates physical frames eagerly rather than waiting for a page fault
// / (spec.md §4.7: "growth allocates frames eagerly"); there is no lazy
// / downward growth (spec.md §8 scenario 5: a freed page stays unmapped).
func (as *Vm_t) Sbrk(delta int) (int, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	oldsz := as.Sz
	if delta == 0 {
		return oldsz, 0
	}
	newsz := oldsz + delta
	if newsz < 0 {
		return 0, -defs.EINVAL
	}
	if delta > 0 {
		if err := as.growHeap(oldsz, newsz); err != 0 {
			return 0, err
		}
	} else {
		as.shrinkHeap(oldsz, newsz)
	}
	as.Sz = newsz
	return oldsz, 0
}

func (as *Vm_t) growHeap(oldsz, newsz int) defs.Err_t {
	lo := util.Roundup(oldsz, mem.PGSIZE)
	hi := util.Roundup(newsz, mem.PGSIZE)
	vmi := as.heapVmi()
	if vmi == nil {
		vmi = as._mkvmi(VANON, 0, hi, PTE_U|PTE_W, 0, nil, nil)
		as.Vmregion.insert(vmi)
	} else {
		vmi.Pglen = hi >> PGSHIFT
		if e := vmi.Pgn + uintptr(vmi.Pglen); e > as.Vmregion.cur_max {
			as.Vmregion.cur_max = e
		}
	}
	for va := lo; va < hi; va += mem.PGSIZE {
		_, p_pg, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		perms := PTE_U | PTE_W | PTE_P | PTE_A | PTE_D
		tshoot, ok := as.Page_insert(va, p_pg, perms, true, nil)
		if !ok {
			mem.Physmem.Refdown(p_pg)
			return -defs.ENOMEM
		}
		if tshoot {
			as.Tlbshoot(uintptr(va), 1)
		}
	}
	return 0
}

func (as *Vm_t) shrinkHeap(oldsz, newsz int) {
	lo := util.Roundup(newsz, mem.PGSIZE)
	hi := util.Roundup(oldsz, mem.PGSIZE)
	for va := lo; va < hi; va += mem.PGSIZE {
		if as.Page_remove(va) {
			as.Tlbshoot(uintptr(va), 1)
		}
	}
	if vmi := as.heapVmi(); vmi != nil {
		vmi.Pglen = lo >> PGSHIFT
	}
}

// / Fork populates child (a freshly MkVm'd, otherwise-empty address space)
// / with a copy-on-write duplicate of as's mappings: spec.md §4.3's
// / uvm_copy and §4.5/§8's fork invariant ("child's observable memory
// / equals the parent's at fork point; subsequent writes in either do not
// / affect the other"). Already-faulted-in private pages are marked
// / PTE_COW (read-only, refcounted) in both address spaces rather than
// / eagerly copied; shared anonymous regions (VSANON) are mapped into the
// / child at full permission, never made copy-on-write.
func (as *Vm_t) Fork(child *Vm_t) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	child.Lock_pmap()
	defer child.Unlock_pmap()

	child.Sz = as.Sz
	for _, r := range as.Vmregion.regions {
		nr := &Vminfo_t{Mtype: r.Mtype, Pgn: r.Pgn, Pglen: r.Pglen, Perms: r.Perms, file: r.file}
		child.Vmregion.insert(nr)
		shared := r.Mtype == VSANON
		for pgn := r.Pgn; pgn < r.End(); pgn++ {
			va := int(pgn << PGSHIFT)
			pte := Pmap_lookup(as.Pmap, va)
			if pte == nil || *pte&PTE_P == 0 {
				continue
			}
			if !shared && *pte&PTE_W != 0 {
				*pte = (*pte &^ (PTE_W | PTE_WASCOW)) | PTE_COW
				as.Tlbshoot(uintptr(va), 1)
			}
			cpte, err := pmap_walk(child.Pmap, va, PTE_U|PTE_W)
			if err != 0 {
				return -defs.ENOMEM
			}
			mem.Physmem.Refup(PTE_ADDR(*pte))
			*cpte = *pte
		}
	}
	if e := as.Vmregion.cur_max; e > child.Vmregion.cur_max {
		child.Vmregion.cur_max = e
	}
	return 0
}

// / Uvmfree_inner releases every user mapping recorded in vmr from the page
// / table rooted at pmap, then frees every intermediate (non-leaf)
// / page-table page the walk visited. The root page itself, p_pmap, is
// / left for the caller to free via mem.Physmem.Dec_pmap once this
// / returns (Vm_t.Uvmfree does exactly that), mirroring xv6-riscv's
// / uvmfree/freewalk split between freeing mapped pages and freeing the
// / table structure itself.
func Uvmfree_inner(pmap *mem.Pmap_t, p_pmap mem.Pa_t, vmr *Vmregion_t) {
	for _, r := range vmr.regions {
		for pgn := r.Pgn; pgn < r.End(); pgn++ {
			va := int(pgn << PGSHIFT)
			pte := Pmap_lookup(pmap, va)
			if pte == nil || *pte&PTE_P == 0 {
				continue
			}
			p_pg := PTE_ADDR(*pte)
			*pte = 0
			mem.Physmem.Refdown(p_pg)
		}
	}
	freewalk(pmap, 2)
}

// freewalk recursively frees every non-leaf page-table page reachable from
// pmap at the given level (2 = entries pointing at level-1 tables, 1 =
// entries pointing at level-0 leaf tables). Any leaf (R/W/X) PTE still
// present at this point means the caller's vmr didn't cover it, a bug
// (xv6-riscv's freewalk makes the identical assumption and panics too).
func freewalk(pmap *mem.Pmap_t, level int) {
	for i := range pmap {
		pte := pmap[i]
		if pte&PTE_P == 0 {
			continue
		}
		if pte&(PTE_R|PTE_W|PTE_X) != 0 {
			panic("freewalk: leaf page still mapped")
		}
		childpa := PTE_ADDR(pte)
		if level > 0 {
			freewalk(dmap2pmap(mem.Physmem.Dmap(childpa)), level-1)
		}
		mem.Physmem.Dec_pmap(childpa)
	}
}

// dmap2pmap reinterprets a direct-mapped page as a page-table page. Pg_t
// ([512]int) and Pmap_t ([512]mem.Pa_t) are identically sized arrays of
// machine words; this cast mirrors the one mem.Walk performs internally
// via its own unexported pg2pmap, needed here since freewalk lives outside
// package mem.
func dmap2pmap(pg *mem.Pg_t) *mem.Pmap_t {
	return (*mem.Pmap_t)(unsafe.Pointer(pg))
}
