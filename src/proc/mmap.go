package proc

import (
	"defs"
	"mem"
	"util"
)

// / Mmap implements spec.md §4.7 mmap(): find a free slot in the fixed
// / VMA table, pick an address below the process's low-water mark
// / (CurMax), register the mapping with the page-fault-driven vm layer
// / (anonymous or file-backed, private or shared), and record the
// / syscall-facing Vmainfo_t entry mmap/munmap/fork manipulate directly.
// / Growth is always downward from CurMax, the same direction biscuit's
// / own mmap allocator grows in, so a later sbrk cannot collide with an
// / earlier mmap.
func Mmap(p *Proc_t, length, prot, flags, fdn, offset int) (int, defs.Err_t) {
	if length <= 0 {
		return 0, -defs.EINVAL
	}
	length = util.Roundup(length, mem.PGSIZE)

	slot := -1
	for i, v := range p.Vmas {
		if !v.Used {
			slot = i
			break
		}
	}
	if slot == -1 {
		return 0, -defs.ENOMEM
	}

	newMax := int(p.CurMax) - length
	if newMax <= p.Sz {
		return 0, -defs.ENOMEM
	}

	perms := mem.PTE_U
	if prot&defs.PROT_WRITE != 0 {
		perms |= mem.PTE_W
	}

	shared := flags&defs.MAP_SHARED != 0

	if flags&defs.MAP_ANONYMOUS != 0 {
		if shared {
			p.Vm.Vmadd_shareanon(newMax, length, perms)
		} else {
			p.Vm.Vmadd_anon(newMax, length, perms)
		}
	} else {
		if fdn < 0 || fdn >= NOFILE || p.Fds[fdn] == nil {
			return 0, -defs.EBADF
		}
		fops := p.Fds[fdn].Fops
		if shared {
			p.Vm.Vmadd_sharefile(newMax, length, perms, fops, offset, nil)
		} else {
			p.Vm.Vmadd_file(newMax, length, perms, fops, offset)
		}
	}

	p.Vmas[slot] = Vmainfo_t{
		Used:  true,
		Start: newMax,
		End:   newMax + length,
		Prot:  prot,
		Flags: flags,
		Fd:    fdn,
	}
	p.CurMax = uintptr(newMax)

	return newMax, 0
}

// / Munmap implements spec.md §4.7 munmap(): the unmapped range must
// / exactly match a previously mmap'd region's bounds (resolved Open
// / Question: overlapping or out-of-order unmap requests are rejected
// / with -EINVAL rather than partially honored).
func Munmap(p *Proc_t, addr, length int) defs.Err_t {
	length = util.Roundup(length, mem.PGSIZE)

	slot := -1
	for i, v := range p.Vmas {
		if v.Used && v.Start == addr && v.End == addr+length {
			slot = i
			break
		}
	}
	if slot == -1 {
		return -defs.EINVAL
	}

	pglen := length / mem.PGSIZE
	if err := p.Vm.Vmregion.Remove(uintptr(addr), pglen); err != 0 {
		return err
	}

	p.Vm.Lock_pmap()
	for va := addr; va < addr+length; va += mem.PGSIZE {
		if p.Vm.Page_remove(va) {
			p.Vm.Tlbshoot(uintptr(va), 1)
		}
	}
	p.Vm.Unlock_pmap()

	p.Vmas[slot] = Vmainfo_t{}
	return 0
}
