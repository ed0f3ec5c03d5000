package proc

import (
	"bytes"
	"debug/elf"

	"defs"
	"mem"
	"ustr"
	"vm"
)

// MAXARG bounds the argv vector exec copies onto the new stack (spec.md
// §4.13 execve: "bounded argv/envp").
const MAXARG = 32

// / Exec implements spec.md §4.13 execve(): resolve path, validate it as a
// / RISC-V 64-bit ELF executable, build a brand-new address space, load
// / every PT_LOAD segment into it, push argv onto a fresh two-page stack
// / (one guard page beneath it), and only once all of that succeeds,
// / atomically replace p's old address space with the new one and set the
// / trapframe's pc/sp to the new image's entry and stack pointer. On any
// / failure the process keeps its old image intact, matching execve's
// / all-or-nothing contract.
func Exec(p *Proc_t, path string, argv []string) defs.Err_t {
	if len(argv) > MAXARG {
		return -defs.E2BIG
	}

	fs_ := FS()
	if fs_ == nil {
		return -defs.ENOENT
	}

	root, err := fs_.Root()
	if err != 0 {
		return err
	}
	canon := p.Cwd.Canonicalpath(ustr.MkUstrSlice([]uint8(path)))
	ip, err := fs_.Namei(canon, root)
	if err != 0 {
		return err
	}

	ip.Ilock()
	buf := make([]byte, ip.Size)
	n, err := ip.Readi(buf, 0, len(buf))
	ip.Iunlock()
	ip.Iput()
	if err != 0 {
		return err
	}
	buf = buf[:n]

	ef, elferr := elf.NewFile(bytes.NewReader(buf))
	if elferr != nil {
		return -defs.ENOEXEC
	}
	if ef.Class != elf.ELFCLASS64 || ef.Machine != elf.EM_RISCV || ef.Type != elf.ET_EXEC {
		return -defs.ENOEXEC
	}

	as, err := vm.MkVm()
	if err != 0 {
		return err
	}

	var hi uintptr
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := loadSegment(as, prog, buf); err != 0 {
			as.Uvmfree()
			return err
		}
		end := uintptr(prog.Vaddr + prog.Memsz)
		if end > hi {
			hi = end
		}
	}
	sz := int(roundupPage(hi))
	if sz > 0 {
		as.Vmadd_anon(0, sz, mem.PTE_U|mem.PTE_W)
	}

	sp, argvVa, err := pushArgv(as, argv)
	if err != 0 {
		as.Uvmfree()
		return err
	}

	MapTrampoline(as.Pmap)
	MapTrapframe(as.Pmap, p.p_tf)

	old := p.Vm
	p.Vm = as
	p.Sz = sz
	p.CurMax = uintptr(mem.TRAPFRAME) - 2*mem.PGSIZE
	p.tf.Epc = uint64(ef.Entry)
	p.tf.A0 = uint64(len(argv))
	p.tf.A1 = uint64(argvVa)
	p.tf.Sp = uint64(sp)
	p.Name = nameFromPath(path)

	for i := range p.Vmas {
		p.Vmas[i] = Vmainfo_t{}
	}

	old.Uvmfree()
	return 0
}

// loadSegment copies one PT_LOAD segment's file bytes into freshly
// allocated, eagerly-mapped pages of as (spec.md §4.13: execve loads the
// image eagerly rather than lazily, same as sbrk-driven growth).
func loadSegment(as *vm.Vm_t, prog *elf.Prog, file []byte) defs.Err_t {
	perms := mem.PTE_U
	if prog.Flags&elf.PF_W != 0 {
		perms |= mem.PTE_W
	}

	start := rounddownPage(uintptr(prog.Vaddr))
	end := roundupPage(uintptr(prog.Vaddr + prog.Memsz))

	as.Lock_pmap()
	defer as.Unlock_pmap()

	for va := start; va < end; va += mem.PGSIZE {
		pg, p_pg, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		dst := mem.Pg2bytes(pg)[:]

		segoff := int64(va) - int64(prog.Vaddr)
		if segoff < int64(prog.Filesz) {
			foff := int64(prog.Off) + segoff
			n := int64(mem.PGSIZE)
			if segoff+n > int64(prog.Filesz) {
				n = int64(prog.Filesz) - segoff
			}
			if foff >= 0 && foff+n <= int64(len(file)) && n > 0 {
				copy(dst, file[foff:foff+n])
			}
		}

		if ok, _ := as.Page_insert(int(va), p_pg, perms, true, nil); ok {
			as.Tlbshoot(va, 1)
		}
	}
	return 0
}

// pushArgv copies argv onto a freshly allocated two-page user stack (one
// guard page, one usable page) placed just below the trapframe, and
// returns the stack pointer and the address of the argv pointer array
// (spec.md §4.13: "push argv/envp onto the new stack"; compare the
// trampoline/trapframe reservation documented in trapframe.go).
func pushArgv(as *vm.Vm_t, argv []string) (uintptr, uintptr, defs.Err_t) {
	stackVa := uintptr(mem.TRAPFRAME) - mem.PGSIZE

	as.Lock_pmap()
	pg, p_pg, ok := mem.Physmem.Refpg_new()
	as.Unlock_pmap()
	if !ok {
		return 0, 0, -defs.ENOMEM
	}
	buf := mem.Pg2bytes(pg)[:]

	sp := mem.PGSIZE
	ustrs := make([]int, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		b := append([]byte(argv[i]), 0)
		sp -= len(b)
		sp &^= 0x7
		if sp < 0 {
			return 0, 0, -defs.E2BIG
		}
		copy(buf[sp:], b)
		ustrs[i] = sp
	}

	sp -= (len(argv) + 1) * 8
	sp &^= 0xf
	if sp < 0 {
		return 0, 0, -defs.E2BIG
	}
	argvOff := sp
	for i, off := range ustrs {
		putUint64(buf, argvOff+i*8, uint64(stackVa)+uint64(off))
	}
	putUint64(buf, argvOff+len(argv)*8, 0)

	as.Lock_pmap()
	if insOk, _ := as.Page_insert(int(stackVa), p_pg, mem.PTE_U|mem.PTE_W, true, nil); insOk {
		as.Tlbshoot(stackVa, 1)
	}
	as.Unlock_pmap()

	return stackVa + uintptr(sp), stackVa + uintptr(argvOff), 0
}

func putUint64(b []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		b[off+i] = byte(v >> (8 * uint(i)))
	}
}

func rounddownPage(v uintptr) uintptr {
	return v &^ uintptr(mem.PGOFFSET)
}

func roundupPage(v uintptr) uintptr {
	return (v + uintptr(mem.PGOFFSET)) &^ uintptr(mem.PGOFFSET)
}

func nameFromPath(path string) [16]byte {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	var n [16]byte
	copy(n[:], base)
	return n
}
