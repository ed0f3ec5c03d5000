package sysc

import (
	"fmt"

	"defs"
	"fd"
	"fs"
	"pipe"
	"proc"
	"res"
	"stat"
	"ustr"
	"usock"
)

// / Init wires this package's dispatcher into proc's user-trap path
// / (spec.md §4.6: "ecall from U -> syscall dispatch"). Called once at
// / boot, after proc.Init.
func Init() {
	proc.RegisterSyscall(Syscall)
}

// resolve canonicalizes a user-supplied path against p's cwd and
// returns it ready for fs.Fs_t.Namei/Nameiparent/Fs_open, which always
// take fs.Root() as their cwd argument once the path is absolute
// (spec.md §4.10 path resolution; the per-process cwd only matters for
// turning a relative path into an absolute one, done here).
func resolve(p *proc.Proc_t, path string) ustr.Ustr {
	return p.Cwd.Canonicalpath(ustr.MkUstrSlice([]uint8(path)))
}

// / Syscall is the syscall table dispatcher (spec.md §6): classify a7,
// / fetch arguments from a0-a5, run the handler, and write its result
// / back into a0 using the sentinel rules sys_mmap and sys_read/write
// / deviate from (spec.md §4.6/§6).
func Syscall(p *proc.Proc_t) {
	tf := p.Tf()
	sa := fetchargs(p)
	sysno := int(tf.A7)

	var ret int64

	res.Reset()
	switch sysno {
	case defs.SYS_FORK:
		ret = sysFork(p)
	case defs.SYS_EXIT:
		sysExit(p, sa.Argint(0))
		return // never reaches here
	case defs.SYS_WAIT:
		ret = sysWait(p)
	case defs.SYS_PIPE:
		ret = sysPipe(p, &sa)
	case defs.SYS_READ:
		ret = sysRead(p, &sa)
	case defs.SYS_KILL:
		ret = int64(proc.Kill(defs.Pid_t(sa.Argint(0))))
	case defs.SYS_EXEC:
		ret = sysExec(p, &sa)
	case defs.SYS_FSTAT:
		ret = sysFstat(p, &sa)
	case defs.SYS_CHDIR:
		ret = sysChdir(p, &sa)
	case defs.SYS_DUP:
		ret = sysDup(p, &sa)
	case defs.SYS_GETPID:
		ret = int64(p.Pid)
	case defs.SYS_SBRK:
		ret = sysSbrk(p, &sa)
	case defs.SYS_SLEEP:
		ret = sysSleep(&sa)
	case defs.SYS_UPTIME:
		ret = int64(proc.Ticks())
	case defs.SYS_OPEN:
		ret = sysOpen(p, &sa)
	case defs.SYS_WRITE:
		ret = sysWrite(p, &sa)
	case defs.SYS_MKNOD:
		ret = sysMknod(p, &sa)
	case defs.SYS_UNLINK:
		ret = int64(proc.FS().Fs_unlink(resolve(p, mustStr(&sa, 0)), root(p)))
	case defs.SYS_LINK:
		ret = sysLink(p, &sa)
	case defs.SYS_MKDIR:
		ret = int64(proc.FS().Fs_mkdir(resolve(p, mustStr(&sa, 0)), root(p)))
	case defs.SYS_CLOSE:
		ret = sysClose(p, &sa)
	case defs.SYS_SOCKET:
		ret = sysSocket(p, &sa)
	case defs.SYS_BIND:
		ret = sysBind(p, &sa)
	case defs.SYS_CONNECT:
		ret = sysConnect(p, &sa)
	case defs.SYS_MMAP:
		ret = sysMmap(p, &sa)
	case defs.SYS_MUNMAP:
		ret = int64(proc.Munmap(p, sa.Argint(0), sa.Argint(1)))
	case defs.SYS_GETENV:
		ret = sysGetenv(p, &sa)
	case defs.SYS_SETENV:
		ret = sysSetenv(p, &sa)
	case defs.SYS_UNSETENV:
		ret = sysUnsetenv(p, &sa)
	case defs.SYS_LISTENV:
		ret = sysListenv(p, &sa)
	default:
		fmt.Printf("pid %d: unknown syscall %d\n", p.Pid, sysno)
		ret = int64(defs.SyscallErr)
	}

	tf.A0 = uint64(ret)
}

func root(p *proc.Proc_t) *fs.Imemnode_t {
	r, err := proc.FS().Root()
	if err != 0 {
		panic("root inode missing")
	}
	return r
}

func mustStr(sa *sysargs_t, i int) string {
	s, err := sa.Argstr(i)
	if err != 0 {
		return ""
	}
	return s
}

func sysFork(p *proc.Proc_t) int64 {
	pid, err := proc.Fork(p)
	if err != 0 {
		return int64(err)
	}
	return int64(pid)
}

func sysExit(p *proc.Proc_t, status int) {
	proc.Exit(status)
}

func sysWait(p *proc.Proc_t) int64 {
	pid, _, err := proc.Wait(p)
	if err != 0 {
		return int64(err)
	}
	return int64(pid)
}

func sysPipe(p *proc.Proc_t, sa *sysargs_t) int64 {
	rd, wr, err := pipe.MkPipe()
	if err != 0 {
		return int64(err)
	}
	i0, err := allocfd(p, &fd.Fd_t{Fops: rd, Perms: fd.FD_READ})
	if err != 0 {
		return int64(err)
	}
	i1, err := allocfd(p, &fd.Fd_t{Fops: wr, Perms: fd.FD_WRITE})
	if err != 0 {
		p.Fds[i0] = nil
		return int64(err)
	}
	var buf [8]uint8
	putUint32(buf[0:4], uint32(i0))
	putUint32(buf[4:8], uint32(i1))
	if err := p.Vm.K2user(buf[:], sa.Argint(0)); err != 0 {
		return int64(err)
	}
	return 0
}

func putUint32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func allocfd(p *proc.Proc_t, f *fd.Fd_t) (int, defs.Err_t) {
	for i, cur := range p.Fds {
		if cur == nil {
			p.Fds[i] = f
			return i, 0
		}
	}
	return 0, -defs.EMFILE
}

func sysRead(p *proc.Proc_t, sa *sysargs_t) int64 {
	_, f, err := sa.Argfd(0)
	if err != 0 {
		return int64(err)
	}
	n, err := f.Fops.Read(sa.Argbuf(1, sa.Argint(2)))
	if err != 0 {
		return int64(err)
	}
	return int64(n)
}

func sysWrite(p *proc.Proc_t, sa *sysargs_t) int64 {
	_, f, err := sa.Argfd(0)
	if err != 0 {
		return int64(err)
	}
	n, err := f.Fops.Write(sa.Argbuf(1, sa.Argint(2)))
	if err != 0 {
		return int64(err)
	}
	return int64(n)
}

func sysClose(p *proc.Proc_t, sa *sysargs_t) int64 {
	fdn, f, err := sa.Argfd(0)
	if err != 0 {
		return int64(err)
	}
	p.Fds[fdn] = nil
	return int64(f.Fops.Close())
}

func sysDup(p *proc.Proc_t, sa *sysargs_t) int64 {
	_, f, err := sa.Argfd(0)
	if err != 0 {
		return int64(err)
	}
	nf, err := fd.Copyfd(f)
	if err != 0 {
		return int64(err)
	}
	i, err := allocfd(p, nf)
	if err != 0 {
		nf.Fops.Close()
		return int64(err)
	}
	return int64(i)
}

func sysOpen(p *proc.Proc_t, sa *sysargs_t) int64 {
	path, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	flags := sa.Argint(1)
	ip, err := proc.FS().Fs_open(resolve(p, path), flags, root(p))
	if err != 0 {
		return int64(err)
	}
	readable := flags&3 != defs.O_WRONLY
	writable := flags&3 == defs.O_WRONLY || flags&3 == defs.O_RDWR
	file := fs.MkFile(ip, proc.FS(), readable, writable, false)
	perms := 0
	if readable {
		perms |= fd.FD_READ
	}
	if writable {
		perms |= fd.FD_WRITE
	}
	i, err := allocfd(p, &fd.Fd_t{Fops: file, Perms: perms})
	if err != 0 {
		return int64(err)
	}
	return int64(i)
}

func sysMknod(p *proc.Proc_t, sa *sysargs_t) int64 {
	path, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	maj := sa.Argint(1)
	min := sa.Argint(2)
	return int64(proc.FS().Fs_mknod(resolve(p, path), maj, min, root(p)))
}

func sysLink(p *proc.Proc_t, sa *sysargs_t) int64 {
	oldp, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	newp, err := sa.Argstr(1)
	if err != 0 {
		return int64(err)
	}
	return int64(proc.FS().Fs_link(resolve(p, oldp), resolve(p, newp), root(p)))
}

func sysChdir(p *proc.Proc_t, sa *sysargs_t) int64 {
	path, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	canon := resolve(p, path)
	ip, err := proc.FS().Namei(canon, root(p))
	if err != 0 {
		return int64(err)
	}
	ip.Ilock()
	isdir := ip.Type == fs.I_DIR
	ip.Iunlock()
	if !isdir {
		ip.Iput()
		return int64(-defs.ENOTDIR)
	}
	p.Cwd.Lock()
	old := p.Cwd.Fd
	p.Cwd.Fd = &fd.Fd_t{Fops: fs.MkFile(ip, proc.FS(), true, true, false), Perms: fd.FD_READ}
	p.Cwd.Path = canon
	p.Cwd.Unlock()
	old.Fops.Close()
	return 0
}

func sysFstat(p *proc.Proc_t, sa *sysargs_t) int64 {
	_, f, err := sa.Argfd(0)
	if err != 0 {
		return int64(err)
	}
	var st stat.Stat_t
	if err := f.Fops.Fstat(&st); err != 0 {
		return int64(err)
	}
	if err := p.Vm.K2user(st.Bytes(), sa.Argint(1)); err != 0 {
		return int64(err)
	}
	return 0
}

func sysSbrk(p *proc.Proc_t, sa *sysargs_t) int64 {
	// the heap may not grow into the mmap region below p.CurMax
	if d := sa.Argint(0); d > 0 && p.Sz+d > int(p.CurMax) {
		return int64(-defs.ENOMEM)
	}
	old, err := p.Vm.Sbrk(sa.Argint(0))
	if err != 0 {
		return int64(err)
	}
	p.Sz = p.Vm.Sz
	return int64(old)
}

func sysSleep(sa *sysargs_t) int64 {
	n := sa.Argint(0)
	target := proc.Ticks() + uint64(n)
	lk := proc.TicksLocker()
	lk.Lock()
	for proc.Ticks() < target {
		proc.Sleep(proc.TicksChan(), lk)
	}
	lk.Unlock()
	return 0
}

func sysMmap(p *proc.Proc_t, sa *sysargs_t) int64 {
	length := sa.Argint(1)
	prot := sa.Argint(2)
	flags := sa.Argint(3)
	fdn := sa.Argint(4)
	offset := sa.Argint(5)
	if fdn >= 0 && prot&defs.PROT_WRITE != 0 {
		if f := p.Fds[fdn]; f == nil || f.Perms&fd.FD_WRITE == 0 {
			return int64(defs.MmapErr)
		}
	}
	addr, err := proc.Mmap(p, length, prot, flags, fdn, offset)
	if err != 0 {
		return int64(defs.MmapErr)
	}
	return int64(addr)
}

func sysGetenv(p *proc.Proc_t, sa *sysargs_t) int64 {
	key, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	val, ok := p.Env[key]
	if !ok {
		return int64(-defs.ENOENT)
	}
	b := append([]byte(val), 0)
	if err := p.Vm.K2user(b, sa.Argint(1)); err != 0 {
		return int64(err)
	}
	return int64(len(val))
}

func sysSetenv(p *proc.Proc_t, sa *sysargs_t) int64 {
	key, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	val, err := sa.Argstr(1)
	if err != 0 {
		return int64(err)
	}
	p.Env[key] = val
	return 0
}

func sysUnsetenv(p *proc.Proc_t, sa *sysargs_t) int64 {
	key, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	delete(p.Env, key)
	return 0
}

func sysListenv(p *proc.Proc_t, sa *sysargs_t) int64 {
	var all []byte
	for k := range p.Env {
		all = append(all, []byte(k)...)
		all = append(all, '\n')
	}
	all = append(all, 0)
	if err := p.Vm.K2user(all, sa.Argint(0)); err != 0 {
		return int64(err)
	}
	return int64(len(all))
}

// sysSocket implements sys_socket: domain/type/protocol are accepted
// but unchecked since package usock's table has exactly one kind of
// endpoint (spec.md §1 "minimal socket interface").
func sysSocket(p *proc.Proc_t, sa *sysargs_t) int64 {
	sock, err := usock.MkSocket(sa.Argint(0), sa.Argint(1), sa.Argint(2))
	if err != 0 {
		return int64(err)
	}
	i, err := allocfd(p, &fd.Fd_t{Fops: sock, Perms: fd.FD_READ | fd.FD_WRITE})
	if err != 0 {
		sock.Close()
		return int64(err)
	}
	return int64(i)
}

func sysBind(p *proc.Proc_t, sa *sysargs_t) int64 {
	_, f, err := sa.Argfd(0)
	if err != 0 {
		return int64(err)
	}
	return int64(f.Fops.Bind(sa.Argbuf(1, sa.Argint(2))))
}

func sysConnect(p *proc.Proc_t, sa *sysargs_t) int64 {
	_, f, err := sa.Argfd(0)
	if err != 0 {
		return int64(err)
	}
	return int64(f.Fops.Connect(sa.Argbuf(1, sa.Argint(2))))
}

func sysExec(p *proc.Proc_t, sa *sysargs_t) int64 {
	path, err := sa.Argstr(0)
	if err != 0 {
		return int64(err)
	}
	argvVa := sa.Argint(1)
	argv, err := fetchArgv(p, argvVa)
	if err != 0 {
		return int64(err)
	}
	if err := proc.Exec(p, path, argv); err != 0 {
		return int64(err)
	}
	return 0
}

// fetchArgv copies a user-space argv (a NUL-terminated pointer array,
// one pointer per argument, terminated by a zero pointer) into a Go
// []string, bounded by proc.MAXARG (spec.md §4.13 execve).
func fetchArgv(p *proc.Proc_t, va int) ([]string, defs.Err_t) {
	var argv []string
	for i := 0; i < proc.MAXARG; i++ {
		ptr, err := p.Vm.Userreadn(va+i*8, 8)
		if err != 0 {
			return nil, err
		}
		if ptr == 0 {
			return argv, 0
		}
		s, err := p.Vm.Userstr(ptr, defs.PATHMAX)
		if err != 0 {
			return nil, err
		}
		argv = append(argv, s.String())
	}
	return nil, -defs.E2BIG
}
