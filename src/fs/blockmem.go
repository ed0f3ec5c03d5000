package fs

import "mem"

// / physBlockmem_t adapts mem.Page_i (satisfied by mem.Physmem) to the
// / Blockmem_i a cached block wants: one physical page per buffer, the
// / same 1:1 page-per-buffer scheme the teacher's own mem package backs
// / every page-sized allocation with.
type physBlockmem_t struct {
	pm mem.Page_i
}

// / MkBlockmem wraps a mem.Page_i allocator (mem.Physmem in production)
// / as a fs.Blockmem_i.
func MkBlockmem(pm mem.Page_i) Blockmem_i {
	return &physBlockmem_t{pm: pm}
}

func (bm *physBlockmem_t) Alloc() (mem.Pa_t, *mem.Bytepg_t, bool) {
	pg, pa, ok := bm.pm.Refpg_new()
	if !ok {
		return 0, nil, false
	}
	return pa, mem.Pg2bytes(pg), true
}

func (bm *physBlockmem_t) Free(pa mem.Pa_t) {
	bm.pm.Refdown(pa)
}

func (bm *physBlockmem_t) Refup(pa mem.Pa_t) {
	bm.pm.Refup(pa)
}
