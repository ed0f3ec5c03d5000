// Package defs holds types and constants shared across kernel packages:
// error codes, thread/process identifiers, syscall numbers, and the
// open/mmap flag bits that cross the user/kernel boundary.
package defs

// / Err_t is a kernel error code. Zero is success; a negative value is an
// / errno-style error as returned to userspace (sign-extended into a7/a0).
type Err_t int

// / Tid_t identifies a kernel thread of execution (one per hart running a
// / process's kernel context).
type Tid_t int

// / Pid_t identifies a process slot. Pid 0 is never assigned to a live
// / process; it marks an Unused slot.
type Pid_t int

// Error codes, mirrored from POSIX errno where a direct analogue exists.
const (
	EPERM        Err_t = 1
	ENOENT       Err_t = 2
	ESRCH        Err_t = 3
	EINTR        Err_t = 4
	EIO          Err_t = 5
	E2BIG        Err_t = 7
	ENOEXEC      Err_t = 8
	EBADF        Err_t = 9
	ECHILD       Err_t = 10
	EAGAIN       Err_t = 11
	ENOMEM       Err_t = 12
	EACCES       Err_t = 13
	EFAULT       Err_t = 14
	ENOTBLK      Err_t = 15
	EBUSY        Err_t = 16
	EEXIST       Err_t = 17
	ENODEV       Err_t = 19
	ENOTDIR      Err_t = 20
	EISDIR       Err_t = 21
	EINVAL       Err_t = 22
	ENFILE       Err_t = 23
	EMFILE       Err_t = 24
	ENOTTY       Err_t = 25
	EFBIG        Err_t = 27
	ENOSPC       Err_t = 28
	ESPIPE       Err_t = 29
	EROFS        Err_t = 30
	EMLINK       Err_t = 31
	EPIPE        Err_t = 32
	ENAMETOOLONG Err_t = 36
	ENOSYS       Err_t = 38
	ENOTEMPTY    Err_t = 39
	ENOTSOCK     Err_t = 88
	// ENOHEAP is kernel internal: a bounded resource-accounting check
	// (see package res) tripped before a potentially unbounded loop could
	// exhaust kernel memory.
	ENOHEAP Err_t = 253
)

// / SyscallErr is the sentinel negative return value for a failed syscall
// / (two's complement -1), except sys_mmap (all-ones unsigned) and
// / sys_read/sys_write (which return non-negative byte counts on success).
const SyscallErr = -1

// / MmapErr is the sentinel returned by a failed mmap: all bits set,
// / interpreted by userspace as an unsigned (void *)-1.
const MmapErr = ^uint(0)

// Syscall numbers, indexing the a7 register at ecall (spec.md §6).
const (
	SYS_FORK     = 1
	SYS_EXIT     = 2
	SYS_WAIT     = 3
	SYS_PIPE     = 4
	SYS_READ     = 5
	SYS_KILL     = 6
	SYS_EXEC     = 7
	SYS_FSTAT    = 8
	SYS_CHDIR    = 9
	SYS_DUP      = 10
	SYS_GETPID   = 11
	SYS_SBRK     = 12
	SYS_SLEEP    = 13
	SYS_UPTIME   = 14
	SYS_OPEN     = 15
	SYS_WRITE    = 16
	SYS_MKNOD    = 17
	SYS_UNLINK   = 18
	SYS_LINK     = 19
	SYS_MKDIR    = 20
	SYS_CLOSE    = 21
	SYS_SOCKET   = 22
	SYS_BIND     = 23
	SYS_CONNECT  = 26
	SYS_MMAP     = 27
	SYS_GETENV   = 28
	SYS_SETENV   = 29
	SYS_UNSETENV = 30
	SYS_LISTENV  = 31
	// SYS_MUNMAP has no number in spec.md's syscall table enumeration
	// even though §4.7 describes unmap(addr, size) as a real operation;
	// appended here rather than left unreachable from userspace.
	SYS_MUNMAP = 32
)

// File open flags (spec.md §6).
const (
	O_RDONLY = 0x000
	O_WRONLY = 0x001
	O_RDWR   = 0x002
	O_CREAT  = 0x200
	O_TRUNC  = 0x400
)

// mmap prot bits are PTE flag bits, not POSIX PROT_* values (spec.md §6).
const (
	PROT_READ  = 1 << 1
	PROT_WRITE = 1 << 2
	PROT_EXEC  = 1 << 3
)

// mmap flags (spec.md §6).
const (
	MAP_SHARED    = 1
	MAP_PRIVATE   = 2
	MAP_ANONYMOUS = 4
)

// / PATHMAX is the maximum path buffer size including the NUL terminator.
const PATHMAX = 128

// / DNAMEMAX is the maximum length of a single directory entry name,
// / including the NUL terminator for names shorter than the limit.
const DNAMEMAX = 14
