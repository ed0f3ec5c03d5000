package proc

import (
	"fd"

	"defs"
	"vm"
)

// / Fork implements spec.md §4.13 fork(): allocate a child slot, clone the
// / parent's address space copy-on-write (vm.Vm_t.Fork), duplicate every
// / open file descriptor, take a second reference on the cwd inode, copy
// / the environment map, and clone the trapframe with the child's return
// / value (a0) forced to 0. The parent's syscall return path gives it the
// / child's pid (see sysc's fork wrapper); the child sees Usertrapret return
// / 0 the first time it is ever scheduled, exactly as if it were the
// / syscall's own return from ecall.
func Fork(parent *Proc_t) (defs.Pid_t, defs.Err_t) {
	child, err := allocproc()
	if err != 0 {
		return 0, err
	}

	as, err := vm.MkVm()
	if err != 0 {
		child.free()
		return 0, err
	}
	MapTrampoline(as.Pmap)
	MapTrapframe(as.Pmap, child.p_tf)
	child.Vm = as

	if err := parent.Vm.Fork(child.Vm); err != 0 {
		child.free()
		return 0, err
	}
	child.Sz = parent.Sz
	child.CurMax = parent.CurMax
	child.Vmas = parent.Vmas

	for i, pfd := range parent.Fds {
		if pfd == nil {
			continue
		}
		nfd, err := fd.Copyfd(pfd)
		if err != 0 {
			child.free()
			return 0, err
		}
		child.Fds[i] = nfd
	}

	if parent.Cwd != nil {
		parent.Cwd.Lock()
		cwdFd, err := fd.Copyfd(parent.Cwd.Fd)
		path := parent.Cwd.Path
		parent.Cwd.Unlock()
		if err != 0 {
			child.free()
			return 0, err
		}
		child.Cwd = fd.MkRootCwd(cwdFd)
		child.Cwd.Path = path
	}

	child.Env = make(map[string]string, len(parent.Env))
	for k, v := range parent.Env {
		child.Env[k] = v
	}

	*child.tf = *parent.tf
	child.tf.A0 = 0
	child.Name = parent.Name
	child.Parent = parent

	child.Acquire()
	child.state = Ready
	child.Release()

	return child.Pid, 0
}
