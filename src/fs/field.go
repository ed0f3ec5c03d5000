package fs

import "encoding/binary"
import "mem"

// fieldr and fieldw read/write the n'th 8-byte little-endian field of an
// on-disk block, the fixed-width encoding the superblock (super.go) and
// the log header (log.go) use so block contents are portable across host
// and target byte order regardless of which one the running Go program's
// native int size happens to be. Inodes (inode.go) and directory entries
// (dir.go) use their own 4-byte fields instead.
const fieldsz = 8

func fieldr(d *mem.Bytepg_t, n int) int {
	off := n * fieldsz
	return int(binary.LittleEndian.Uint64(d[off : off+fieldsz]))
}

func fieldw(d *mem.Bytepg_t, n int, v int) {
	off := n * fieldsz
	binary.LittleEndian.PutUint64(d[off:off+fieldsz], uint64(v))
}
