package fs

import (
	"sync"
	"unsafe"

	"bounds"
	"res"
)

// / MAXOPBLOCKS bounds the number of distinct blocks a single log
// / transaction (begin_op/end_op pair) may dirty.
const MAXOPBLOCKS = 10

// / Log_t is the write-ahead log protecting multi-block filesystem
// / updates: a fixed on-disk region of LOGSIZE blocks, an in-memory
// / header recording which home blocks the current transaction's log
// / blocks belong to, and begin_op/log_write/end_op/commit exactly as
// / xv6's log.c structures them (the ancestor spec.md §4.9 names).
type Log_t struct {
	sync.Mutex
	start      int
	size       int // LOGSIZE, in blocks
	dev        int
	committing bool
	outstanding int
	logblks    []int // home block numbers absorbed into this transaction
	cache      *Objcache_t
	blkmem     Blockmem_i
	disk       Disk_i
}

// / Locker_i is the minimal lock interface the sleep hook needs.
type Locker_i interface {
	Lock()
	Unlock()
}

var (
	sleepFn func(unsafe.Pointer, Locker_i)
	wakeFn  func(unsafe.Pointer)
)

// / RegisterSched wires the scheduler's blocking primitives into this
// / package, the same indirection lock.RegisterSched/pipe.RegisterSched
// / use: a process only ever mounts one filesystem, so (unlike Pipe_t,
// / of which there are many) a package-level hook is the right shape.
func RegisterSched(sleep func(unsafe.Pointer, Locker_i), wake func(unsafe.Pointer)) {
	sleepFn, wakeFn = sleep, wake
}

// / MkLog constructs a log over [start, start+size) blocks of dev,
// / backed by cache for block I/O.
func MkLog(start, size, dev int, cache *Objcache_t, blkmem Blockmem_i, disk Disk_i) *Log_t {
	return &Log_t{start: start, size: size, dev: dev, cache: cache, blkmem: blkmem, disk: disk}
}

func (lg *Log_t) chan_() unsafe.Pointer { return unsafe.Pointer(lg) }

// / Begin_op reserves room for one more operation's worth of blocks
// / before returning, sleeping while the log lacks space or a commit is
// / in progress (spec.md §4.9 begin_op).
func (lg *Log_t) Begin_op() {
	lg.Lock()
	for {
		full := (lg.outstanding+1)*MAXOPBLOCKS > lg.size-len(lg.logblks)
		if lg.committing || full {
			sleepFn(lg.chan_(), lg)
			continue
		}
		lg.outstanding++
		break
	}
	lg.Unlock()
}

// / Log_write absorbs b's blockno into the current transaction's log
// / header if it is not already present, and pins b in the cache (via
// / its Objref_t) so it survives until the eventual commit installs it
// / (spec.md §4.9 log_write).
func (lg *Log_t) Log_write(b *Bdev_block_t) {
	lg.Lock()
	defer lg.Unlock()
	for _, n := range lg.logblks {
		if n == b.Block {
			return
		}
	}
	if !res.Resadd_noblock(bounds.Bounds(bounds.B_LOG_T_LOG_WRITE)) {
		panic("log overrun")
	}
	lg.logblks = append(lg.logblks, b.Block)
	// Up pins b against the cache's LRU eviction: the caller's own
	// brelse still runs after this returns, so without this the block's
	// refcnt would hit zero and evictone could reclaim it before commit
	// ever reads its dirty Data back out.
	b.Ref.Up()
}

// / End_op closes out one operation; the last concurrent operation to
// / finish performs the actual commit (spec.md §4.9 end_op).
func (lg *Log_t) End_op() {
	lg.Lock()
	lg.outstanding--
	docommit := false
	if lg.outstanding == 0 {
		docommit = true
		lg.committing = true
	} else {
		wakeFn(lg.chan_())
	}
	lg.Unlock()

	if docommit {
		lg.commit()
		lg.Lock()
		lg.committing = false
		lg.logblks = nil
		wakeFn(lg.chan_())
		lg.Unlock()
	}
}

// readblk/writeblk perform synchronous, uncached block I/O against the
// log region itself (header plus data blocks): the log's own
// bookkeeping blocks are never routed through the buffer cache, since
// nothing but commit/recovery ever touches them.
func (lg *Log_t) readblk(blkno int) *Bdev_block_t {
	b := MkBlock_newpage(blkno, "log", lg.blkmem, lg.disk, nil)
	b.Read()
	return b
}

func (lg *Log_t) writeblk(b *Bdev_block_t) {
	b.Write()
}

// commit writes the transaction's dirty blocks to the log area, then a
// header recording them with n>0, installs each to its home location,
// then a header with n=0 -- the exact three-phase sequence xv6's
// commit()/install_trans()/write_log() use so a crash at any point
// leaves either the old or the new state, never a mix. The first phase
// reads each home block's dirty content out of the cache (where
// Log_write pinned it), not off disk: the whole point of the log is to
// durably record the in-memory modification before it is ever written
// home, and re-reading disk here would just copy the stale pre-update
// bytes into the log. Each block's pin (one from Log_write, one from
// this commit's own Lookup) is held until that block's install phase
// below has actually written it to its home location.
func (lg *Log_t) commit() {
	blks := lg.logblks
	if len(blks) == 0 {
		return
	}
	refs := make([]*Objref_t, len(blks))
	for i, home := range blks {
		r, ok := lg.cache.Lookup(home)
		if !ok {
			panic("log: pinned block missing from cache")
		}
		refs[i] = r
		b := r.obj.(*Bdev_block_t)
		b.Lock()
		dst := MkBlock_newpage(lg.start+1+i, "logblk", lg.blkmem, lg.disk, nil)
		copy(dst.Data[:], b.Data[:])
		lg.writeblk(dst)
		dst.Free_page()
		b.Unlock()
	}
	lg.writeheader(blks)
	for i, home := range blks {
		src := lg.readblk(lg.start + 1 + i)
		dst := lg.readblk(home)
		copy(dst.Data[:], src.Data[:])
		lg.writeblk(dst)
		dst.Free_page()
		src.Free_page()
		// installed at home: release the lookup pin taken above and the
		// absorption pin Log_write took when this block entered the
		// transaction.
		refs[i].Down()
		refs[i].Down()
	}
	lg.writeheader(nil)
}

// writeheader encodes the log header (n, then n home block numbers)
// into the log's first block and writes it synchronously.
func (lg *Log_t) writeheader(blks []int) {
	b := MkBlock_newpage(lg.start, "loghdr", lg.blkmem, lg.disk, nil)
	fieldw(b.Data, 0, len(blks))
	for i, home := range blks {
		fieldw(b.Data, 1+i, home)
	}
	lg.writeblk(b)
	b.Free_page()
}

// / Recover replays a committed-but-not-installed transaction found at
// / mount time (spec.md §4.9 Recovery), then clears the header. Safe to
// / call unconditionally; a no-op when n==0.
func (lg *Log_t) Recover() {
	hdr := lg.readblk(lg.start)
	n := fieldr(hdr.Data, 0)
	if n == 0 {
		hdr.Free_page()
		return
	}
	homes := make([]int, n)
	for i := range homes {
		homes[i] = fieldr(hdr.Data, 1+i)
	}
	hdr.Free_page()
	for i, home := range homes {
		src := lg.readblk(lg.start + 1 + i)
		dst := lg.readblk(home)
		copy(dst.Data[:], src.Data[:])
		lg.writeblk(dst)
		dst.Free_page()
		src.Free_page()
	}
	lg.writeheader(nil)
}
