package vm

import (
	"sort"

	"defs"
	"fdops"
	"mem"
)

// / mtype_t classifies a Vminfo_t's backing: private anonymous memory,
// / shared anonymous memory, or a file-backed mapping.
type mtype_t uint

const (
	// / VANON is private, zero-fill-on-demand, copy-on-write anonymous
	// / memory (the common case for a process's heap/stack/bss).
	VANON mtype_t = iota
	// / VFILE is a mapping backed by an open file's Fdops_i. It is shared
	// / only when Vmadd_sharefile created it with a non-nil unpin;
	// / otherwise it is private.
	VFILE
	// / VSANON is shared anonymous memory: every page is eagerly present
	// / and mapped writable in all sharers, never copy-on-write.
	VSANON
)

// / Mfile_t is the shared state of a file-backed mapping, referenced by
// / every Vminfo_t that maps the same (file, offset) region.
type Mfile_t struct {
	mfops    fdops.Fdops_i
	unpin    mem.Unpin_i
	mapcount int
}

type vmfile_t struct {
	foff   int
	mfile  *Mfile_t
	shared bool
}

// / Vminfo_t describes one mapped region of a process's address space:
// / its page range, permissions, and (for VFILE) backing file.
type Vminfo_t struct {
	Mtype mtype_t
	Pgn   uintptr
	Pglen int
	Perms uint
	file  vmfile_t
}

// / End returns the page number one past the last page of this mapping.
func (vmi *Vminfo_t) End() uintptr {
	return vmi.Pgn + uintptr(vmi.Pglen)
}

// / Ptefor returns the leaf PTE for faultaddr under pmap, allocating
// / intermediate page-table levels if necessary.
func (vmi *Vminfo_t) Ptefor(pmap *mem.Pmap_t, faultaddr uintptr) (*mem.Pa_t, bool) {
	return mem.Walk(pmap, faultaddr&^uintptr(PGOFFSET), true)
}

// / Filepage returns the page backing faultaddr in this file mapping,
// / reading it into a freshly allocated page via the backing Fdops_i's
// / Pread on every call; no page cache is consulted.
func (vmi *Vminfo_t) Filepage(faultaddr uintptr) (*mem.Pg_t, mem.Pa_t, defs.Err_t) {
	if vmi.Mtype != VFILE {
		panic("not a file mapping")
	}
	pgn := (faultaddr >> PGSHIFT) - vmi.Pgn
	foff := vmi.file.foff + int(pgn)*mem.PGSIZE
	pg, p_pg, ok := mem.Physmem.Refpg_new_nozero()
	if !ok {
		return nil, 0, -defs.ENOMEM
	}
	dst := mem.Pg2bytes(pg)[:]
	fb := &Fakeubuf_t{}
	fb.Fake_init(dst)
	_, err := vmi.file.mfile.mfops.Pread(fb, foff)
	if err != 0 {
		mem.Physmem.Refdown(p_pg)
		return nil, 0, err
	}
	return pg, p_pg, 0
}

// / Vmregion_t is the ordered set of a process's mapped regions, kept
// / sorted by starting page number so Lookup can binary search and empty
// / can find a gap of the requested size.
type Vmregion_t struct {
	regions []*Vminfo_t
	// one past the last page of the highest region ever inserted; empty
	// never returns a gap below this page number, avoiding repeated O(n)
	// scans from the bottom of the address space. Regions added at a
	// caller-chosen address (Vmadd_*) are not bound by it.
	cur_max uintptr
}

// / Lookup returns the Vminfo_t covering virtual address va, if any.
func (vr *Vmregion_t) Lookup(va uintptr) (*Vminfo_t, bool) {
	pgn := va >> PGSHIFT
	i := sort.Search(len(vr.regions), func(i int) bool {
		return vr.regions[i].Pgn+uintptr(vr.regions[i].Pglen) > pgn
	})
	if i < len(vr.regions) && vr.regions[i].Pgn <= pgn {
		return vr.regions[i], true
	}
	return nil, false
}

func (vr *Vmregion_t) insert(vmi *Vminfo_t) {
	if vmi.Mtype == VFILE && vmi.file.mfile != nil {
		vmi.file.mfile.mapcount++
	}
	i := sort.Search(len(vr.regions), func(i int) bool {
		return vr.regions[i].Pgn >= vmi.Pgn
	})
	vr.regions = append(vr.regions, nil)
	copy(vr.regions[i+1:], vr.regions[i:])
	vr.regions[i] = vmi
	if e := vmi.Pgn + uintptr(vmi.Pglen); e > vr.cur_max {
		vr.cur_max = e
	}
}

// / Remove deletes the mapping covering [start, start+pglen) exactly;
// / partial/overlapping unmaps are rejected with -defs.EINVAL rather than
// / silently truncated (cur_max remains the authoritative low-water mark
// / and is never lowered back down by a removal).
func (vr *Vmregion_t) Remove(start uintptr, pglen int) defs.Err_t {
	pgn := start >> PGSHIFT
	for i, r := range vr.regions {
		if r.Pgn == pgn && r.Pglen == pglen {
			vr.regions = append(vr.regions[:i], vr.regions[i+1:]...)
			return 0
		}
		if pgn < r.Pgn+uintptr(r.Pglen) && pgn+uintptr(pglen) > r.Pgn {
			// overlaps but isn't an exact match
			return -defs.EINVAL
		}
	}
	return -defs.EINVAL
}

// / empty finds the lowest gap of at least len bytes at or above
// / max(startva, cur_max*PGSIZE) and returns its start and available
// / length. cur_max is the authoritative low-water mark: empty never
// / returns address space below it even after intervening Removes.
func (vr *Vmregion_t) empty(startva, length uintptr) (uintptr, uintptr) {
	base := vr.cur_max << PGSHIFT
	if startva > base {
		base = startva
	}
	return base, ^uintptr(0) - base
}

// / Clear drops every mapping, dereferencing any shared file backings.
func (vr *Vmregion_t) Clear() {
	for _, r := range vr.regions {
		if r.Mtype == VFILE && r.file.mfile != nil {
			r.file.mfile.mapcount--
		}
	}
	vr.regions = nil
}

// pmap_walk and Pmap_lookup wrap mem.Walk with the int-va call signature
// as.go's older code uses; the PTE_U|PTE_W perm argument to pmap_walk
// mirrors the teacher's original signature but is unused here since
// mem.Mapone/mem.Walk take permission bits only at install time.
func pmap_walk(pmap *mem.Pmap_t, va int, _ mem.Pa_t) (*mem.Pa_t, defs.Err_t) {
	pte, ok := mem.Walk(pmap, uintptr(va)&^uintptr(PGOFFSET), true)
	if !ok {
		return nil, -defs.ENOMEM
	}
	return pte, 0
}

// / Pmap_lookup returns the leaf PTE for va under pmap without
// / allocating missing intermediate levels, or nil if none exists.
func Pmap_lookup(pmap *mem.Pmap_t, va int) *mem.Pa_t {
	pte, ok := mem.Walk(pmap, uintptr(va)&^uintptr(PGOFFSET), false)
	if !ok {
		return nil
	}
	return pte
}
