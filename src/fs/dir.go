package fs

import (
	"encoding/binary"

	"defs"
	"ustr"
)

// / DIRENTSZ is the on-disk size of one directory entry: a 4-byte inode
// / number followed by a DNAMEMAX-byte name field (NUL-padded, not
// / necessarily NUL-terminated when the name fills the field exactly).
const DIRENTSZ = 4 + defs.DNAMEMAX

func direntName(buf []uint8) ustr.Ustr {
	return ustr.MkUstrSlice(buf[4 : 4+defs.DNAMEMAX])
}

func direntInum(buf []uint8) int {
	return int(binary.LittleEndian.Uint32(buf[0:4]))
}

func direntPut(buf []uint8, inum int, name ustr.Ustr) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(inum))
	n := copy(buf[4:4+defs.DNAMEMAX], name)
	for i := 4 + n; i < 4+defs.DNAMEMAX; i++ {
		buf[i] = 0
	}
}

// / Dirlookup searches dir's entries for name, returning the matching
// / inode and its byte offset within dir's data, or (nil, 0, false)
// / (spec.md §4.10 dirlookup). Caller holds Ilock on dir.
func (dir *Imemnode_t) Dirlookup(name ustr.Ustr) (*Imemnode_t, int, bool) {
	if dir.Type != I_DIR {
		return nil, 0, false
	}
	buf := make([]uint8, DIRENTSZ)
	for off := 0; off+DIRENTSZ <= dir.Size; off += DIRENTSZ {
		n, err := dir.Readi(buf, off, DIRENTSZ)
		if err != 0 || n != DIRENTSZ {
			break
		}
		inum := direntInum(buf)
		if inum == 0 {
			continue
		}
		if direntName(buf).Eq(name) {
			ip, err := dir.fs.Iget(inum)
			if err != 0 {
				return nil, 0, false
			}
			return ip, off, true
		}
	}
	return nil, 0, false
}

// / Dirlink adds an entry mapping name to inum in dir, reusing a free
// / (inum==0) slot if one exists or appending otherwise (spec.md §4.10
// / dirlink). Caller holds Ilock on dir and is inside a log transaction.
func (dir *Imemnode_t) Dirlink(name ustr.Ustr, inum int) defs.Err_t {
	if existing, _, ok := dir.Dirlookup(name); ok {
		existing.Iput()
		return -defs.EEXIST
	}
	buf := make([]uint8, DIRENTSZ)
	off := dir.Size
	for o := 0; o+DIRENTSZ <= dir.Size; o += DIRENTSZ {
		n, err := dir.Readi(buf, o, DIRENTSZ)
		if err != 0 || n != DIRENTSZ {
			return -defs.EIO
		}
		if direntInum(buf) == 0 {
			off = o
			break
		}
	}
	direntPut(buf, inum, name)
	_, err := dir.Writei(buf, off, DIRENTSZ)
	return err
}

// / Dirunlink clears the entry at off within dir, leaving a hole dirlink
// / may later reuse (spec.md §4.10 directories; used by unlink).
func (dir *Imemnode_t) Dirunlink(off int) defs.Err_t {
	buf := make([]uint8, DIRENTSZ)
	direntPut(buf, 0, ustr.MkUstr())
	_, err := dir.Writei(buf, off, DIRENTSZ)
	return err
}

// / Isempty reports whether dir has any entries besides "." and "..",
// / the precondition for removing a directory.
func (dir *Imemnode_t) Isempty() bool {
	buf := make([]uint8, DIRENTSZ)
	for off := 0; off+DIRENTSZ <= dir.Size; off += DIRENTSZ {
		n, err := dir.Readi(buf, off, DIRENTSZ)
		if err != 0 || n != DIRENTSZ {
			break
		}
		if direntInum(buf) == 0 {
			continue
		}
		name := direntName(buf)
		if !name.Isdot() && !name.Isdotdot() {
			return false
		}
	}
	return true
}
