package proc

import (
	"fmt"

	"defs"
	"fd"
	"fs"
	"hart"
	"mem"
	"uart"
)

// / Userinit builds the very first process (spec.md §6 boot sequence) and
// / marks it Ready to run. Unlike xv6's handwritten initcode assembly blob
// / (needed there only because fork/exec don't exist yet for pid 1), this
// / process already has a full address space and fd table from Mkproc, so
// / Userinit loads /init directly through the same Exec path every later
// / process uses, rather than bootstrapping through an embedded tiny
// / machine-code stub. Must run after SetFS and before the first
// / Scheduler call on any hart.
func Userinit() defs.Err_t {
	p, err := Mkproc()
	if err != 0 {
		return err
	}
	p.Name = ustrName_init()

	root, err := FS().Root()
	if err != 0 {
		p.free()
		return err
	}
	rootFile := fs.MkFile(root, FS(), true, true, false)
	p.Cwd = fd.MkRootCwd(&fd.Fd_t{Fops: rootFile, Perms: fd.FD_READ | fd.FD_WRITE})

	if err := Exec(p, "/init", []string{"/init"}); err != 0 {
		p.free()
		return err
	}

	SetInitproc(p)

	p.Acquire()
	p.state = Ready
	p.Release()
	return 0
}

func ustrName_init() [16]byte {
	var n [16]byte
	copy(n[:], "init")
	return n
}

// / Bootmain orchestrates the one-time kernel boot sequence on the
// / bootstrap hart (spec.md §6): map the trampoline into the kernel page
// / table, register the console as fs.Devsw[defs.D_CONSOLE], mount the
// / filesystem, wire the
// / scheduler's sleep/wakeup hooks into every blocking package, build the
// / initial process, then fall into the scheduler loop forever. The
// / physical memory allocator, kernel page table, and console must
// / already be initialized by the caller (mem.Phys_init, mem.Kpgtbl_init,
// / uart.Init): those calls must happen exactly once process-wide before
// / any hart reaches here, whereas Bootmain itself is meant to run on
// / every hart (Trapinithart + Scheduler are per-hart).
func Bootmain(fs_ *fs.Fs_t, primary bool) {
	Trapinithart()

	if primary {
		MapTrampoline(mem.Kpgtblp)
		fs.Devsw[defs.D_CONSOLE] = uart.Device
		SetFS(fs_)
		Init()
		if err := Userinit(); err != 0 {
			panic(fmt.Sprintf("userinit: %v", err))
		}
	}

	fmt.Printf("hart %d: entering scheduler\n", hart.Hartid())
	Scheduler()
}
