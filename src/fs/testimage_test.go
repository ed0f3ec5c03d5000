package fs

// Package-internal test fixture: an in-memory Disk_i and a tiny
// freshly-formatted filesystem image, standing in for the external
// mkfs tool (spec.md §1 "the filesystem image builder" is explicitly
// out of scope) so package fs's own tests can exercise the log,
// buffer cache, and inode/directory layer without a host binary or a
// real block device. Mirrors the layout MkFs itself derives, just with
// small enough extents to keep the in-memory map tiny.
import (
	"sync"
	"testing"

	"mem"
	"ustr"
)

// / memDisk_t is a Disk_i backed by a map of block number to bytes.
// / Every request is serviced synchronously inline; Start always
// / returns true so callers that wait on AckCh still get unblocked.
type memDisk_t struct {
	mu     sync.Mutex
	blocks map[int]*[BSIZE]byte
}

func mkMemDisk() *memDisk_t {
	return &memDisk_t{blocks: map[int]*[BSIZE]byte{}}
}

func (d *memDisk_t) blockFor(n int) *[BSIZE]byte {
	b, ok := d.blocks[n]
	if !ok {
		b = &[BSIZE]byte{}
		d.blocks[n] = b
	}
	return b
}

func (d *memDisk_t) Start(req *Bdev_req_t) bool {
	d.mu.Lock()
	req.Blks.Apply(func(b *Bdev_block_t) {
		store := d.blockFor(b.Block)
		switch req.Cmd {
		case BDEV_READ:
			copy(b.Data[:], store[:])
		case BDEV_WRITE:
			copy(store[:], b.Data[:])
		case BDEV_FLUSH:
		}
	})
	d.mu.Unlock()
	req.AckCh <- true
	return true
}

func (d *memDisk_t) Stats() string {
	return "memDisk_t"
}

// Geometry for the test image: small enough to keep the backing map
// tiny, large enough for a handful of files and directories across a
// test run.
const (
	testLoglen        = 16
	testInodeblks     = 4
	testFreeblocklen  = 1
	testNinodes       = testInodeblks * ipb
)

// / mkTestFs formats and mounts a fresh filesystem over a memDisk_t,
// / with only a root directory present, the way booting over a disk
// / mkfs already populated does for Userinit (see proc/boot.go) but
// / built entirely in memory for package-level tests.
func mkTestFs(t *testing.T) *Fs_t {
	t.Helper()
	return mkTestFsWithDisk(t, mkMemDisk())
}

// / mkTestFsWithDisk formats the same minimal image as mkTestFs but
// / against any Disk_i, so a test can swap in a different backing (e.g.
// / hostdisk_test.go's file-backed disk) without duplicating the
// / superblock/root-directory setup.
func mkTestFsWithDisk(t *testing.T, disk Disk_i) *Fs_t {
	t.Helper()

	blkmem := MkBlockmem(mem.Physmem)

	var sbdata mem.Bytepg_t
	sb := Superblock_t{Data: &sbdata}
	sb.SetLoglen(testLoglen)
	sb.SetInodelen(testInodeblks)
	sb.SetFreeblocklen(testFreeblocklen)
	inodestart := 2 + testLoglen
	bmapstart := inodestart + testInodeblks
	sb.SetFreeblock(bmapstart)
	sb.SetIorphanblock(0)
	sb.SetIorphanlen(0)
	sb.SetLastblock(bmapstart + testFreeblocklen + 1024)

	fs_ := MkFs(0, disk, blkmem, sb)

	fs_.log.Begin_op()
	root, err := fs_.Ialloc(I_DIR)
	if err != 0 {
		t.Fatalf("allocating root inode: %d", err)
	}
	if root.inum != ROOTINO {
		t.Fatalf("root inode got inum %d, want %d", root.inum, ROOTINO)
	}
	root.Ilock()
	root.Nlink = 1
	root.Iupdate()
	if e := root.Dirlink(ustr.MkUstrDot(), root.inum); e != 0 {
		t.Fatalf("linking '.': %d", e)
	}
	if e := root.Dirlink(ustr.DotDot, root.inum); e != 0 {
		t.Fatalf("linking '..': %d", e)
	}
	root.Iunlock()
	fs_.log.End_op()

	return fs_
}
