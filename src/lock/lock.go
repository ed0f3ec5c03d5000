// Package lock provides the two mutual-exclusion primitives every other
// kernel package locks data with: a spinning Spinlock_t for short critical
// sections, and a Sleeplock_t for longer ones that may need to wait for
// I/O (spec.md §4.1). Sleeplock's blocking half is supplied by whichever
// package owns the scheduler, registered through RegisterSched: the same
// break-the-import-cycle indirection the teacher's vm package uses for
// Cpumap (vm/as.go), so proc can depend on lock without lock depending
// back on proc.
package lock

import (
	"sync/atomic"
	"unsafe"

	"hart"
)

// / Spinlock_t is a simple test-and-set lock. Acquire disables interrupts
// / on the calling hart for as long as it is held, so a timer interrupt
// / can never deadlock against a lock the same hart holds (spec.md §4.1).
type Spinlock_t struct {
	locked uint32
	// name aids panic messages when a lock is held where it shouldn't be.
	name string
	// hartid of the holder, valid only while locked == 1. Used by Holding.
	hartid int32
}

// / Mkname records a human-readable name for a zero-value Spinlock_t. Not
// / required before use; purely diagnostic.
func (l *Spinlock_t) Mkname(name string) {
	l.name = name
}

// / Acquire spins until the lock is free, then takes it. Interrupts are
// / disabled on the calling hart for the duration it is held.
func (l *Spinlock_t) Acquire() {
	hart.PushOff()
	if l.Holding() {
		panic("spinlock: already held: " + l.name)
	}
	for !atomic.CompareAndSwapUint32(&l.locked, 0, 1) {
	}
	atomic.StoreInt32(&l.hartid, int32(hart.Hartid()))
}

// / Release drops the lock.
func (l *Spinlock_t) Release() {
	if !l.Holding() {
		panic("spinlock: not held: " + l.name)
	}
	atomic.StoreInt32(&l.hartid, -1)
	atomic.StoreUint32(&l.locked, 0)
	hart.PopOff()
}

// / Holding reports whether the calling hart holds l.
func (l *Spinlock_t) Holding() bool {
	return atomic.LoadUint32(&l.locked) == 1 && atomic.LoadInt32(&l.hartid) == int32(hart.Hartid())
}

var (
	sleepFn func(chan_ unsafe.Pointer, lk *Spinlock_t)
	wakeFn  func(chan_ unsafe.Pointer)
)

// / RegisterSched wires the scheduler's blocking primitives into this
// / package. Called exactly once, during boot, by the package that owns
// / the process table.
func RegisterSched(sleep func(unsafe.Pointer, *Spinlock_t), wake func(unsafe.Pointer)) {
	sleepFn, wakeFn = sleep, wake
}

// / Sleeplock_t protects a critical section that may block for a long
// / time (disk I/O, a pipe with no data yet). Unlike Spinlock_t it does not
// / disable interrupts or busy-wait: a blocked acquirer sleeps on the lock
// / itself as the wait channel.
type Sleeplock_t struct {
	guard  Spinlock_t
	locked bool
	name   string
}

// / Mkname records a diagnostic name.
func (sl *Sleeplock_t) Mkname(name string) {
	sl.name = name
	sl.guard.Mkname(name + "-guard")
}

// / Acquire blocks until sl is free, then takes it.
func (sl *Sleeplock_t) Acquire() {
	sl.guard.Acquire()
	for sl.locked {
		sleepFn(unsafe.Pointer(sl), &sl.guard)
	}
	sl.locked = true
	sl.guard.Release()
}

// / Release drops sl and wakes any sleepers waiting on it.
func (sl *Sleeplock_t) Release() {
	sl.guard.Acquire()
	sl.locked = false
	sl.guard.Release()
	wakeFn(unsafe.Pointer(sl))
}

// / Holding reports whether sl is currently held by anyone (best-effort;
// / racy unless called by the holder).
func (sl *Sleeplock_t) Holding() bool {
	sl.guard.Acquire()
	h := sl.locked
	sl.guard.Release()
	return h
}
