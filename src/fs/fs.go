// Package fs implements the on-disk filesystem: a write-ahead log
// (log.go) protecting a classic direct+indirect inode layer (inode.go)
// and flat directory entries (dir.go), all built on the buffer cache
// (blk.go, cache.go) and the fixed on-disk superblock (super.go).
// Grounded throughout on xv6-riscv's fs.c/log.c/bio.c, the direct
// ancestor spec.md §4.8-§4.11 names, expressed against this module's
// own Fdops_i/Userio_i boundary instead of xv6's raw copyin/copyout.
package fs

import (
	"bounds"
	"defs"
	"res"
	"ustr"
)

// / NBUF is the buffer cache's fixed capacity (spec.md §4.8: "Fixed
// / N=30 buffers").
const NBUF = 30

// / NICACHE bounds how many inodes may be resident in memory at once.
const NICACHE = 50

// / ROOTINO is the inode number of the filesystem root directory.
const ROOTINO = 1

// / Fs_t is one mounted filesystem: its superblock geometry, write-ahead
// / log, and the buffer/inode caches built on top of them.
type Fs_t struct {
	dev    int
	disk   Disk_i
	blkmem Blockmem_i
	sb     Superblock_t

	logstart   int
	inodestart int
	ninodes    int
	bmapstart  int
	bmaplen    int
	datastart  int

	bcache *Objcache_t
	icache *Objcache_t
	log    *Log_t

	balloclk struct {
		next int
	}
}

// bread/brelse implement the buffer-cache discipline of spec.md §4.8's
// bget/bread/brelse, built directly on top of Objcache_t the same way
// the inode cache is.
func (fs_ *Fs_t) bread(blkno int) *Bdev_block_t {
	if r, ok := fs_.bcache.Lookup(blkno); ok {
		b := r.obj.(*Bdev_block_t)
		b.Lock()
		return b
	}
	b := MkBlock_newpage(blkno, "fsblk", fs_.blkmem, fs_.disk, fs_)
	b.Read()
	b.Ref = fs_.bcache.Add(blkno, b)
	b.Lock()
	return b
}

// brelse releases a block fetched via bread: each bread/brelse pair
// contributes exactly one increment/decrement to the block's own
// Objref_t (held in Bdev_block_t.Ref since creation or first caching),
// never a fresh Lookup, which would double-count the reference.
func (fs_ *Fs_t) brelse(b *Bdev_block_t) {
	b.Unlock()
	b.Ref.Down()
}

// / Relse satisfies Block_cb_i: invoked by Bdev_block_t.Done for callers
// / that release through the callback rather than brelse directly.
func (fs_ *Fs_t) Relse(b *Bdev_block_t, s string) {
	fs_.brelse(b)
}

// balloc/bfree implement a simple first-fit scan of the free-block
// bitmap (spec.md §4.8/§4.9 describe only the log and buffer cache in
// detail; the bitmap allocator follows xv6's balloc()/bfree() directly
// since nothing in spec.md redesigns it).
func (fs_ *Fs_t) balloc() (int, defs.Err_t) {
	for bi := 0; bi < fs_.bmaplen*BSIZE*8; bi++ {
		blk := fs_.bmapstart + bi/(BSIZE*8)
		b := fs_.bread(blk)
		byteoff := (bi % (BSIZE * 8)) / 8
		mask := uint8(1 << (uint(bi) % 8))
		if b.Data[byteoff]&mask == 0 {
			b.Data[byteoff] |= mask
			fs_.log.Log_write(b)
			fs_.brelse(b)
			blkno := fs_.datastart + bi
			return blkno, 0
		}
		fs_.brelse(b)
	}
	return 0, -defs.ENOSPC
}

func (fs_ *Fs_t) bfree(blkno int) {
	bi := blkno - fs_.datastart
	blk := fs_.bmapstart + bi/(BSIZE*8)
	b := fs_.bread(blk)
	byteoff := (bi % (BSIZE * 8)) / 8
	mask := uint8(1 << (uint(bi) % 8))
	b.Data[byteoff] &^= mask
	fs_.log.Log_write(b)
	fs_.brelse(b)
}

// / MkFs constructs an Fs_t over dev using the superblock already read
// / into sb, deriving the region layout spec.md §6 lays out (log region
// / right after the superblock, inode region after the log, free-block
// / bitmap right after the inode region, data starting at
// / sb.Freeblock()+sb.Freeblocklen()) and replays any pending log
// / transaction. The orphan-map fields of sb are not read.
func MkFs(dev int, disk Disk_i, blkmem Blockmem_i, sb Superblock_t) *Fs_t {
	fs_ := &Fs_t{dev: dev, disk: disk, blkmem: blkmem, sb: sb}
	fs_.logstart = 2
	fs_.inodestart = fs_.logstart + sb.Loglen()
	fs_.ninodes = sb.Inodelen() * ipb
	fs_.bmapstart = fs_.inodestart + sb.Inodelen()
	fs_.bmaplen = sb.Freeblocklen()
	fs_.datastart = sb.Freeblock() + sb.Freeblocklen()

	fs_.bcache = MkObjcache(NBUF)
	fs_.icache = MkObjcache(NICACHE)
	fs_.log = MkLog(fs_.logstart, sb.Loglen(), dev, fs_.bcache, blkmem, disk)
	fs_.log.Recover()
	return fs_
}

// / Root returns the (unlocked) root directory inode.
func (fs_ *Fs_t) Root() (*Imemnode_t, defs.Err_t) {
	return fs_.Iget(ROOTINO)
}

// namex implements spec.md §4.10's path resolution algorithm exactly:
// start at root or cwd depending on leading '/', walk each component
// with dirlookup, and (in parent mode) stop one short of the final
// component.
func (fs_ *Fs_t) namex(path ustr.Ustr, cwd *Imemnode_t, parent bool) (*Imemnode_t, ustr.Ustr, defs.Err_t) {
	var ip *Imemnode_t
	var err defs.Err_t
	if path.IsAbsolute() {
		ip, err = fs_.Root()
	} else {
		ip = cwd.Idup()
	}
	if err != 0 {
		return nil, nil, err
	}

	comps := splitPath(path)
	for i, comp := range comps {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_FS_T_NAMEI)) {
			ip.Iput()
			return nil, nil, -defs.ENOHEAP
		}
		ip.Ilock()
		if ip.Type != I_DIR {
			ip.Iunlock()
			ip.Iput()
			return nil, nil, -defs.ENOTDIR
		}
		if parent && i == len(comps)-1 {
			ip.Iunlock()
			return ip, comp, 0
		}
		next, _, ok := ip.Dirlookup(comp)
		ip.Iunlock()
		ip.Iput()
		if !ok {
			return nil, nil, -defs.ENOENT
		}
		ip = next
	}
	if parent {
		// path had no components below cwd/root: no parent exists
		ip.Iput()
		return nil, nil, -defs.EINVAL
	}
	return ip, nil, 0
}

func splitPath(path ustr.Ustr) []ustr.Ustr {
	var out []ustr.Ustr
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// / Namei resolves path to its inode (spec.md §4.10 namei).
func (fs_ *Fs_t) Namei(path ustr.Ustr, cwd *Imemnode_t) (*Imemnode_t, defs.Err_t) {
	ip, _, err := fs_.namex(path, cwd, false)
	return ip, err
}

// / Nameiparent resolves path's directory component, returning it
// / (unlocked, referenced) along with the final component's name
// / (spec.md §4.10 nameiparent).
func (fs_ *Fs_t) Nameiparent(path ustr.Ustr, cwd *Imemnode_t) (*Imemnode_t, ustr.Ustr, defs.Err_t) {
	return fs_.namex(path, cwd, true)
}

// / Fs_mkdir creates an empty directory at path with "." and ".."
// / entries (spec.md §4.10: "'..' and '.' entries are ordinary
// / entries"). Runs inside its own log transaction.
func (fs_ *Fs_t) Fs_mkdir(path ustr.Ustr, cwd *Imemnode_t) defs.Err_t {
	fs_.log.Begin_op()
	defer fs_.log.End_op()

	dir, name, err := fs_.Nameiparent(path, cwd)
	if err != 0 {
		return err
	}
	dir.Ilock()
	ndir, err := fs_.Ialloc(I_DIR)
	if err != 0 {
		dir.Iunlock()
		dir.Iput()
		return err
	}
	ndir.Ilock()
	ndir.Nlink = 1
	ndir.Iupdate()
	if e := ndir.Dirlink(ustr.MkUstrDot(), ndir.inum); e != 0 {
		ndir.Iunlock()
		ndir.Iput()
		dir.Iunlock()
		dir.Iput()
		return e
	}
	if e := ndir.Dirlink(ustr.DotDot, dir.inum); e != 0 {
		ndir.Iunlock()
		ndir.Iput()
		dir.Iunlock()
		dir.Iput()
		return e
	}
	ndir.Iunlock()

	if e := dir.Dirlink(name, ndir.inum); e != 0 {
		ndir.Iput()
		dir.Iunlock()
		dir.Iput()
		return e
	}
	// the new directory's ".." entry is one more link to dir
	dir.Nlink++
	dir.Iupdate()
	dir.Iunlock()
	dir.Iput()
	ndir.Iput()
	return 0
}

// / Fs_mknod creates a device special file at path with the given major/
// / minor device encoded into its first two direct block slots (a
// / device inode stores no data blocks of its own).
func (fs_ *Fs_t) Fs_mknod(path ustr.Ustr, maj, min int, cwd *Imemnode_t) defs.Err_t {
	fs_.log.Begin_op()
	defer fs_.log.End_op()

	dir, name, err := fs_.Nameiparent(path, cwd)
	if err != 0 {
		return err
	}
	dir.Ilock()
	nip, err := fs_.Ialloc(I_DEV)
	if err != 0 {
		dir.Iunlock()
		dir.Iput()
		return err
	}
	nip.Ilock()
	nip.Nlink = 1
	nip.Addrs[0] = maj
	nip.Addrs[1] = min
	nip.Iupdate()
	nip.Iunlock()

	e := dir.Dirlink(name, nip.inum)
	dir.Iunlock()
	dir.Iput()
	nip.Iput()
	return e
}

// / Fs_link adds newpath as an additional name for the existing file at
// / oldpath (spec.md §4.10: directories cannot be hard-linked).
func (fs_ *Fs_t) Fs_link(oldpath, newpath ustr.Ustr, cwd *Imemnode_t) defs.Err_t {
	fs_.log.Begin_op()
	defer fs_.log.End_op()

	ip, err := fs_.Namei(oldpath, cwd)
	if err != 0 {
		return err
	}
	ip.Ilock()
	if ip.Type == I_DIR {
		ip.Iunlock()
		ip.Iput()
		return -defs.EPERM
	}
	ip.Nlink++
	ip.Iupdate()
	ip.Iunlock()

	dir, name, err := fs_.Nameiparent(newpath, cwd)
	if err != 0 {
		ip.Ilock()
		ip.Nlink--
		ip.Iupdate()
		ip.Iunlock()
		ip.Iput()
		return err
	}
	dir.Ilock()
	e := dir.Dirlink(name, ip.inum)
	dir.Iunlock()
	dir.Iput()
	if e != 0 {
		ip.Ilock()
		ip.Nlink--
		ip.Iupdate()
		ip.Iunlock()
	}
	ip.Iput()
	return e
}

// / Fs_unlink removes path's directory entry, decrementing the target
// / inode's link count (and, for an empty directory, the parent's link
// / count too, dropping the link the child's ".." entry held).
func (fs_ *Fs_t) Fs_unlink(path ustr.Ustr, cwd *Imemnode_t) defs.Err_t {
	fs_.log.Begin_op()
	defer fs_.log.End_op()

	dir, name, err := fs_.Nameiparent(path, cwd)
	if err != 0 {
		return err
	}
	if name.Isdot() || name.Isdotdot() {
		dir.Iput()
		return -defs.EPERM
	}
	dir.Ilock()
	ip, off, ok := dir.Dirlookup(name)
	if !ok {
		dir.Iunlock()
		dir.Iput()
		return -defs.ENOENT
	}
	ip.Ilock()
	if ip.Type == I_DIR && !ip.Isempty() {
		ip.Iunlock()
		ip.Iput()
		dir.Iunlock()
		dir.Iput()
		return -defs.ENOTEMPTY
	}
	dir.Dirunlink(off)
	if ip.Type == I_DIR {
		dir.Nlink--
		dir.Iupdate()
	}
	ip.Nlink--
	ip.Iupdate()
	ip.Iunlock()
	ip.Iput()
	dir.Iunlock()
	dir.Iput()
	return 0
}

// / Fs_open resolves (and, with O_CREAT, creates) the file at path,
// / returning its locked-then-unlocked in-memory inode (spec.md §6
// / open flags, §4.11 filealloc builds the Fdops_i wrapper around this).
func (fs_ *Fs_t) Fs_open(path ustr.Ustr, flags int, cwd *Imemnode_t) (*Imemnode_t, defs.Err_t) {
	fs_.log.Begin_op()
	defer fs_.log.End_op()

	if flags&defs.O_CREAT != 0 {
		dir, name, err := fs_.Nameiparent(path, cwd)
		if err != 0 {
			return nil, err
		}
		dir.Ilock()
		if existing, _, ok := dir.Dirlookup(name); ok {
			dir.Iunlock()
			dir.Iput()
			return existing, 0
		}
		nip, err := fs_.Ialloc(I_FILE)
		if err != 0 {
			dir.Iunlock()
			dir.Iput()
			return nil, err
		}
		nip.Ilock()
		nip.Nlink = 1
		nip.Iupdate()
		nip.Iunlock()
		e := dir.Dirlink(name, nip.inum)
		dir.Iunlock()
		dir.Iput()
		if e != 0 {
			nip.Iput()
			return nil, e
		}
		return nip, 0
	}

	ip, err := fs_.Namei(path, cwd)
	if err != 0 {
		return nil, err
	}
	if flags&defs.O_TRUNC != 0 {
		ip.Ilock()
		if ip.Type == I_FILE {
			ip.itrunc()
		}
		ip.Iunlock()
	}
	return ip, 0
}
