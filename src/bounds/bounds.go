// Package bounds names the iteration caps that package res enforces
// against potentially unbounded loops: copying a VMA across an address
// space, walking a user-supplied iovec, writing log blocks, and so on.
// Grounded on the teacher's own bounds.Bounds(bounds.B_*) call sites in
// vm/as.go and vm/userbuf.go; extended here with the fs/logfs analogues
// spec.md's write-ahead log and path-resolution components need.
package bounds

// / Bound identifies which loop's budget is being charged.
type Bound int

const (
	B_ASPACE_T_K2USER_INNER Bound = iota
	B_ASPACE_T_USER2K_INNER
	B_USERBUF_T__TX
	B_USERIOVEC_T_IOV_INIT
	B_USERIOVEC_T__TX
	B_FS_T_NAMEI
	B_FS_T_WRITEI
	B_FS_T_READI
	B_LOG_T_LOG_WRITE
	B_PIPE_T_OP_WRITE
)

// per-id cap, in units appropriate to the call site (pages, iovec
// entries, path components, blocks...). Chosen generously: these exist to
// catch runaway/adversarial input, not to constrain ordinary use.
var caps = [...]uint{
	B_ASPACE_T_K2USER_INNER: 4096,
	B_ASPACE_T_USER2K_INNER: 4096,
	B_USERBUF_T__TX:         4096,
	B_USERIOVEC_T_IOV_INIT:  1024,
	B_USERIOVEC_T__TX:       4096,
	B_FS_T_NAMEI:            64,
	B_FS_T_WRITEI:           4096,
	B_FS_T_READI:            4096,
	B_LOG_T_LOG_WRITE:       4096,
	B_PIPE_T_OP_WRITE:       4096,
}

// / Bounds returns the iteration cap registered for id.
func Bounds(id Bound) uint {
	return caps[id]
}
