package fs

// hostDisk_t is a Disk_i backed by a real file via golang.org/x/sys/unix's
// raw pread/pwrite, rather than testimage_test.go's in-memory map. It
// exists so package fs's tests can also exercise the buffer cache and
// write-ahead log against something closer to a real block device image
// (the kind mkfs.go would have produced), the way the teacher's own
// mkfs.go builds images with plain file I/O rather than through the
// kernel's own disk driver. Grounded on golang.org/x/sys/unix's raw
// syscall wrappers, the same dependency the retrieval pack's gcsfuse and
// hanwen-go-fuse repos use pervasively for host-side file-descriptor work.
import (
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"defs"
)

// / hostDisk_t serializes every request through mu and services it
// / synchronously, the same contract memDisk_t provides.
type hostDisk_t struct {
	mu sync.Mutex
	fd int
}

func mkHostDisk(t *testing.T) *hostDisk_t {
	t.Helper()
	path := t.TempDir() + "/disk.img"
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o600)
	if err != nil {
		t.Fatalf("unix.Open: %v", err)
	}
	d := &hostDisk_t{fd: fd}
	t.Cleanup(func() { unix.Close(fd) })
	return d
}

func (d *hostDisk_t) Start(req *Bdev_req_t) bool {
	d.mu.Lock()
	req.Blks.Apply(func(b *Bdev_block_t) {
		off := int64(b.Block) * BSIZE
		switch req.Cmd {
		case BDEV_READ:
			if _, err := unix.Pread(d.fd, b.Data[:], off); err != nil {
				panic("hostDisk_t: pread: " + err.Error())
			}
		case BDEV_WRITE:
			if _, err := unix.Pwrite(d.fd, b.Data[:], off); err != nil {
				panic("hostDisk_t: pwrite: " + err.Error())
			}
		case BDEV_FLUSH:
			unix.Fsync(d.fd)
		}
	})
	d.mu.Unlock()
	req.AckCh <- true
	return true
}

func (d *hostDisk_t) Stats() string {
	return "hostDisk_t"
}

// / mkTestFsOnHostDisk formats the same minimal image mkTestFs builds,
// / but backed by a real file instead of an in-memory map, so a test can
// / confirm the log/buffer-cache path also works against real pread/
// / pwrite offsets rather than only an in-memory slice.
func mkTestFsOnHostDisk(t *testing.T) *Fs_t {
	t.Helper()
	return mkTestFsWithDisk(t, mkHostDisk(t))
}

func TestHostDiskFileCreateWriteReadSurvivesFlush(t *testing.T) {
	fs_ := mkTestFsOnHostDisk(t)
	root, err := fs_.Root()
	if err != 0 {
		t.Fatalf("root: %d", err)
	}

	name := path("/hostfile.txt")
	want := []byte("stored on a real file-backed disk")

	ip, err := fs_.Fs_open(name, defs.O_CREAT|defs.O_RDWR, root)
	if err != 0 {
		t.Fatalf("Fs_open create: %d", err)
	}
	file := MkFile(ip, fs_, true, true, false)
	n, err := file.Write(mkBufUio(want))
	if err != 0 || n != len(want) {
		t.Fatalf("Write: n=%d err=%d", n, err)
	}
	if err := file.Close(); err != 0 {
		t.Fatalf("Close: %d", err)
	}

	ip2, err := fs_.Fs_open(name, defs.O_RDONLY, root)
	if err != 0 {
		t.Fatalf("reopen Fs_open: %d", err)
	}
	file2 := MkFile(ip2, fs_, true, false, false)
	got := make([]byte, len(want))
	n, err = file2.Read(mkBufUio(got))
	if err != 0 {
		t.Fatalf("Read: %d", err)
	}
	if n != len(want) || string(got) != string(want) {
		t.Fatalf("roundtrip mismatch: got %q, want %q", got[:n], want)
	}
	file2.Close()
}
