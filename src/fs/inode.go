package fs

import (
	"encoding/binary"

	"bounds"
	"defs"
	"lock"
	"mem"
	"res"
)

// On-disk inode layout (spec.md §4.10): a fixed 64-byte record holding
// type, link count, size, NDIRECT direct block numbers and one
// singly-indirect block number. Each field is a 4-byte little-endian
// int, distinct from the 8-byte fields field.go's fieldr/fieldw give
// the superblock (which has far fewer, wider fields).
const (
	DINODESZ = 64
	NDIRECT  = 12
	// NINDIRECT holds one block number per 4 bytes of an indirect block
	// (BSIZE/4, proportional to this module's BSIZE rather than xv6's
	// fixed 256 -- see DESIGN.md's note on the BSIZE deviation).
	NINDIRECT = BSIZE / 4
	MAXFILE   = (NDIRECT + NINDIRECT) * BSIZE
)

const ipb = BSIZE / DINODESZ // inodes per block

type itype_t int

const (
	I_INVALID itype_t = 0
	I_FILE    itype_t = 1
	I_DIR     itype_t = 2
	I_DEV     itype_t = 3
)

func dinoOff(inum int) int { return (inum % ipb) * DINODESZ }

func dinoRd(d *mem.Bytepg_t, inum, field int) int {
	o := dinoOff(inum) + field*4
	return int(int32(binary.LittleEndian.Uint32(d[o : o+4])))
}

func dinoWr(d *mem.Bytepg_t, inum, field, v int) {
	o := dinoOff(inum) + field*4
	binary.LittleEndian.PutUint32(d[o:o+4], uint32(v))
}

// dinode field indices within the 64-byte record.
const (
	f_type  = 0
	f_nlink = 1
	f_size  = 2
	f_addr0 = 3 // addrs[0..NDIRECT] occupy fields 3..3+NDIRECT (direct+indirect)
)

// / Imemnode_t is the in-memory handle for one inode: a sleeplock
// / guarding the cached fields, dirty flag, and the block cache used to
// / read/write its data (spec.md §4.10 ilock/iunlock/readi/writei).
type Imemnode_t struct {
	sleep lock.Sleeplock_t
	ref   *Objref_t

	dev   int
	inum  int
	valid bool

	Type  itype_t
	Nlink int
	Size  int
	Addrs [NDIRECT + 1]int

	fs *Fs_t
}

// / Key identifies this inode in the icache (Obj_i).
func (ip *Imemnode_t) Key() int { return ip.inum }

// / EvictFromCache/EvictDone/Tryevict/Evictnow satisfy Obj_i; inodes are
// / never speculatively marked for eviction ahead of their last iput (an
// / inode with a pending write must stay resident), so Tryevict/Evictnow
// / are always false and EvictFromCache/EvictDone do nothing beyond what
// / Iput already did.
func (ip *Imemnode_t) EvictFromCache() {}
func (ip *Imemnode_t) EvictDone()      {}
func (ip *Imemnode_t) Tryevict()       {}
func (ip *Imemnode_t) Evictnow() bool  { return false }

// / Ialloc scans the inode region for a free (type==I_INVALID) slot,
// / marks it as typ under a log write, and returns an in-memory handle
// / (spec.md §4.10 ialloc). Caller must be inside a log transaction.
func (fs_ *Fs_t) Ialloc(typ itype_t) (*Imemnode_t, defs.Err_t) {
	for inum := 1; inum < fs_.ninodes; inum++ {
		blkno := fs_.inodestart + inum/ipb
		b := fs_.bread(blkno)
		if itype_t(dinoRd(b.Data, inum, f_type)) == I_INVALID {
			dinoWr(b.Data, inum, f_type, int(typ))
			dinoWr(b.Data, inum, f_nlink, 0)
			dinoWr(b.Data, inum, f_size, 0)
			fs_.log.Log_write(b)
			fs_.brelse(b)
			return fs_.Iget(inum)
		}
		fs_.brelse(b)
	}
	return nil, -defs.ENOSPC
}

// / Iget returns the in-memory handle for inum, deduplicating against
// / any already-cached handle for the same inode (spec.md §4.10 iget).
// / The returned handle is not locked.
func (fs_ *Fs_t) Iget(inum int) (*Imemnode_t, defs.Err_t) {
	if r, ok := fs_.icache.Lookup(inum); ok {
		return r.obj.(*Imemnode_t), 0
	}
	ip := &Imemnode_t{dev: fs_.dev, inum: inum, fs: fs_}
	r := fs_.icache.Add(inum, ip)
	ip.ref = r
	return ip, 0
}

// / Ilock acquires the inode's sleeplock and, on first lock, reads its
// / fields in from disk (spec.md §4.10 ilock).
func (ip *Imemnode_t) Ilock() {
	ip.sleep.Acquire()
	if ip.valid {
		return
	}
	fs_ := ip.fs
	blkno := fs_.inodestart + ip.inum/ipb
	b := fs_.bread(blkno)
	ip.Type = itype_t(dinoRd(b.Data, ip.inum, f_type))
	ip.Nlink = dinoRd(b.Data, ip.inum, f_nlink)
	ip.Size = dinoRd(b.Data, ip.inum, f_size)
	for i := range ip.Addrs {
		ip.Addrs[i] = dinoRd(b.Data, ip.inum, f_addr0+i)
	}
	fs_.brelse(b)
	ip.valid = true
}

// / Iunlock releases the inode's sleeplock.
func (ip *Imemnode_t) Iunlock() {
	ip.sleep.Release()
}

// / Iupdate writes the in-memory fields back to the inode's disk block;
// / caller must be inside a log transaction and hold Ilock.
func (ip *Imemnode_t) Iupdate() {
	fs_ := ip.fs
	blkno := fs_.inodestart + ip.inum/ipb
	b := fs_.bread(blkno)
	dinoWr(b.Data, ip.inum, f_type, int(ip.Type))
	dinoWr(b.Data, ip.inum, f_nlink, ip.Nlink)
	dinoWr(b.Data, ip.inum, f_size, ip.Size)
	for i, a := range ip.Addrs {
		dinoWr(b.Data, ip.inum, f_addr0+i, a)
	}
	fs_.log.Log_write(b)
	fs_.brelse(b)
}

// / Iput drops this handle's cache reference; on the last reference to
// / an inode with Nlink==0, the inode is truncated and freed under a log
// / op (spec.md §4.10 iput).
func (ip *Imemnode_t) Iput() {
	last := ip.ref.Down()
	if !last {
		return
	}
	if ip.valid && ip.Nlink == 0 {
		ip.fs.log.Begin_op()
		ip.Ilock()
		ip.itrunc()
		ip.Type = I_INVALID
		ip.Iupdate()
		ip.Iunlock()
		ip.fs.log.End_op()
		ip.fs.icache.Remove(ip.inum)
	}
}

// / Idup bumps the reference count on an already-held handle (used when
// / duplicating a File_t across fork/dup).
func (ip *Imemnode_t) Idup() *Imemnode_t {
	ip.ref.Up()
	return ip
}

// bmap returns (allocating if necessary) the physical block number
// backing the n'th block of ip's data, growing the indirect block on
// demand (spec.md §4.10 writei: "growing the indirect block on
// demand"). Caller must hold Ilock and be inside a log transaction if
// alloc is true.
func (ip *Imemnode_t) bmap(n int, alloc bool) (int, defs.Err_t) {
	fs_ := ip.fs
	if n < NDIRECT {
		if ip.Addrs[n] == 0 {
			if !alloc {
				return 0, -defs.EINVAL
			}
			blk, err := fs_.balloc()
			if err != 0 {
				return 0, err
			}
			ip.Addrs[n] = blk
		}
		return ip.Addrs[n], 0
	}
	n -= NDIRECT
	if n >= NINDIRECT {
		return 0, -defs.EFBIG
	}
	if ip.Addrs[NDIRECT] == 0 {
		if !alloc {
			return 0, -defs.EINVAL
		}
		blk, err := fs_.balloc()
		if err != 0 {
			return 0, err
		}
		ip.Addrs[NDIRECT] = blk
	}
	ib := fs_.bread(ip.Addrs[NDIRECT])
	a := int(binary.LittleEndian.Uint32(ib.Data[n*4 : n*4+4]))
	if a == 0 {
		if !alloc {
			fs_.brelse(ib)
			return 0, -defs.EINVAL
		}
		blk, err := fs_.balloc()
		if err != 0 {
			fs_.brelse(ib)
			return 0, err
		}
		a = blk
		binary.LittleEndian.PutUint32(ib.Data[n*4:n*4+4], uint32(a))
		fs_.log.Log_write(ib)
	}
	fs_.brelse(ib)
	return a, 0
}

// / itrunc frees every direct and indirect block and zeroes the inode's
// / size and block pointers (spec.md §4.10 itrunc). Caller holds Ilock
// / and is inside a log transaction.
func (ip *Imemnode_t) itrunc() {
	fs_ := ip.fs
	for i := 0; i < NDIRECT; i++ {
		if ip.Addrs[i] != 0 {
			fs_.bfree(ip.Addrs[i])
			ip.Addrs[i] = 0
		}
	}
	if ip.Addrs[NDIRECT] != 0 {
		ib := fs_.bread(ip.Addrs[NDIRECT])
		for i := 0; i < NINDIRECT; i++ {
			a := int(binary.LittleEndian.Uint32(ib.Data[i*4 : i*4+4]))
			if a != 0 {
				fs_.bfree(a)
			}
		}
		fs_.brelse(ib)
		fs_.bfree(ip.Addrs[NDIRECT])
		ip.Addrs[NDIRECT] = 0
	}
	ip.Size = 0
	ip.Iupdate()
}

// / Readi copies n bytes starting at off from ip's data into dst (spec.md
// / §4.10 readi). Caller holds Ilock.
func (ip *Imemnode_t) Readi(dst []uint8, off, n int) (int, defs.Err_t) {
	if off > ip.Size {
		return 0, 0
	}
	if off+n > ip.Size {
		n = ip.Size - off
	}
	tot := 0
	for tot < n {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_FS_T_READI)) {
			return tot, -defs.ENOHEAP
		}
		blk, err := ip.bmap((off+tot)/BSIZE, false)
		if err != 0 {
			return tot, err
		}
		b := ip.fs.bread(blk)
		boff := (off + tot) % BSIZE
		c := BSIZE - boff
		if c > n-tot {
			c = n - tot
		}
		copy(dst[tot:tot+c], b.Data[boff:boff+c])
		ip.fs.brelse(b)
		tot += c
	}
	return tot, 0
}

// / Writei copies n bytes from src into ip's data starting at off,
// / extending the file and growing indirect blocks as needed (spec.md
// / §4.10 writei). Caller holds Ilock and is inside a log transaction.
func (ip *Imemnode_t) Writei(src []uint8, off, n int) (int, defs.Err_t) {
	if off+n > MAXFILE {
		return 0, -defs.EFBIG
	}
	tot := 0
	for tot < n {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_FS_T_WRITEI)) {
			return tot, -defs.ENOHEAP
		}
		blk, err := ip.bmap((off+tot)/BSIZE, true)
		if err != 0 {
			return tot, err
		}
		b := ip.fs.bread(blk)
		boff := (off + tot) % BSIZE
		c := BSIZE - boff
		if c > n-tot {
			c = n - tot
		}
		copy(b.Data[boff:boff+c], src[tot:tot+c])
		ip.fs.log.Log_write(b)
		ip.fs.brelse(b)
		tot += c
	}
	if off+tot > ip.Size {
		ip.Size = off + tot
	}
	ip.Iupdate()
	return tot, 0
}
