package fs

import (
	"sync"

	"defs"
	"fdops"
	"mem"
	"stat"
)

// / NDEV bounds the device-major dispatch table (spec.md's console plus
// / the handful of SUPPLEMENTED device kinds in SPEC_FULL.md).
const NDEV = 8

// / Devsw_i is the narrow read/write contract a character device
// / registers under its major number; uart.Device satisfies it directly
// / since Fdops_i's Read/Write have the identical shape.
type Devsw_i interface {
	Read(dst fdops.Userio_i) (int, defs.Err_t)
	Write(src fdops.Userio_i) (int, defs.Err_t)
}

// / Devsw is the device-major dispatch table, populated at boot (e.g.
// / fs.Devsw[defs.D_CONSOLE] = uart.Device) before any inode of type
// / I_DEV is opened.
var Devsw [NDEV]Devsw_i

// / File_t is the inode-backed Fdops_i: an open regular file, directory,
// / or device special file, plus the read/write cursor spec.md §4.11
// / says is shared across dup'd/forked descriptors referencing the same
// / File_t.
type File_t struct {
	sync.Mutex
	ip       *Imemnode_t
	fs       *Fs_t
	off      int
	readable bool
	writable bool
	append_  bool
}

// / MkFile wraps an already-Iget'd inode as an open file (spec.md §4.11
// / filealloc).
func MkFile(ip *Imemnode_t, fs_ *Fs_t, readable, writable, append_ bool) *File_t {
	return &File_t{ip: ip, fs: fs_, readable: readable, writable: writable, append_: append_}
}

func (f *File_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if !f.readable {
		return 0, -defs.EBADF
	}
	f.Lock()
	defer f.Unlock()

	f.ip.Ilock()
	defer f.ip.Iunlock()

	if f.ip.Type == I_DEV {
		maj, _ := f.ip.Addrs[0], f.ip.Addrs[1]
		if maj < 0 || maj >= NDEV || Devsw[maj] == nil {
			return 0, -defs.ENODEV
		}
		return Devsw[maj].Read(dst)
	}

	buf := make([]uint8, dst.Remain())
	n, err := f.ip.Readi(buf, f.off, len(buf))
	if err != 0 {
		return 0, err
	}
	did, err := dst.Uiowrite(buf[:n])
	f.off += did
	return did, err
}

func (f *File_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if !f.writable {
		return 0, -defs.EBADF
	}
	f.Lock()
	defer f.Unlock()

	if f.ip.Type == I_DEV {
		f.ip.Ilock()
		maj := f.ip.Addrs[0]
		f.ip.Iunlock()
		if maj < 0 || maj >= NDEV || Devsw[maj] == nil {
			return 0, -defs.ENODEV
		}
		return Devsw[maj].Write(src)
	}

	// writes run inside a log transaction, chunked so each sub-op fits
	// comfortably under the log's per-transaction limit (spec.md §4.11).
	const chunk = (MAXOPBLOCKS - 4) * BSIZE
	buf := make([]uint8, chunk)
	tot := 0
	for src.Remain() > 0 {
		n, err := src.Uioread(buf)
		if err != 0 {
			return tot, err
		}
		if n == 0 {
			break
		}
		f.fs.log.Begin_op()
		f.ip.Ilock()
		if f.append_ {
			f.off = f.ip.Size
		}
		did, werr := f.ip.Writei(buf[:n], f.off, n)
		f.ip.Iunlock()
		f.fs.log.End_op()
		f.off += did
		tot += did
		if werr != 0 {
			return tot, werr
		}
		if did != n {
			return tot, -defs.ENOSPC
		}
	}
	return tot, 0
}

// / Pread reads at a fixed offset without touching f.off (used by lazy
// / mmap's page-in, vm.Vminfo_t.Filepage).
func (f *File_t) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	f.ip.Ilock()
	defer f.ip.Iunlock()
	buf := make([]uint8, dst.Remain())
	n, err := f.ip.Readi(buf, offset, len(buf))
	if err != 0 {
		return 0, err
	}
	return dst.Uiowrite(buf[:n])
}

func (f *File_t) Fstat(st *stat.Stat_t) defs.Err_t {
	f.ip.Ilock()
	defer f.ip.Iunlock()
	st.Wino(uint(f.ip.inum))
	st.Wmode(uint(f.ip.Type))
	st.Wsize(uint(f.ip.Size))
	return 0
}

func (f *File_t) Close() defs.Err_t {
	f.ip.Iput()
	return 0
}

func (f *File_t) Reopen() defs.Err_t {
	f.ip.Idup()
	return 0
}

func (f *File_t) Mmapi(offset, length int, inc bool) ([]mem.Mmapinfo_t, defs.Err_t) {
	return nil, -defs.EINVAL
}

func (f *File_t) Truncate(newlen uint) defs.Err_t {
	f.fs.log.Begin_op()
	defer f.fs.log.End_op()
	f.ip.Ilock()
	defer f.ip.Iunlock()
	if f.ip.Type != I_FILE {
		return -defs.EINVAL
	}
	f.ip.itrunc()
	return 0
}

func (f *File_t) Accept(fdops.Userio_i) (fdops.Userio_i, defs.Err_t) { return nil, -defs.ENOTSOCK }
func (f *File_t) Bind(fdops.Userio_i) defs.Err_t                     { return -defs.ENOTSOCK }
func (f *File_t) Connect(fdops.Userio_i) defs.Err_t                  { return -defs.ENOTSOCK }
func (f *File_t) Listen(int) defs.Err_t                              { return -defs.ENOTSOCK }
