package fs

import (
	"container/list"
	"sync"

	"hashtable"
)

var bdev_debug = false

// / Obj_i is satisfied by anything Objcache_t can hold: a cached disk
// / block or a cached inode. Key identifies the object within its cache;
// / EvictFromCache/EvictDone run (both with the cache lock held) when
// / the object's refcount is zero and the cache wants the slot back; Tryevict/Evictnow mark objects the cache should prefer to
// / reclaim first (clean, unmodified blocks) over ones still dirty.
type Obj_i interface {
	Key() int
	EvictFromCache()
	EvictDone()
	Tryevict()
	Evictnow() bool
}

// / Objref_t wraps one cached object with its own refcount, distinct
// / from the cache-wide refcount: many in-flight users of the same
// / block/inode each hold an Objref_t, and the object is only eligible
// / for eviction once every Objref_t referencing it has been released.
type Objref_t struct {
	sync.Mutex
	obj    Obj_i
	refcnt int
}

// / MkObjref wraps obj with an initial refcount of one.
func MkObjref(obj Obj_i) *Objref_t {
	return &Objref_t{obj: obj, refcnt: 1}
}

// / Up increments the reference count.
func (r *Objref_t) Up() {
	r.Lock()
	r.refcnt++
	r.Unlock()
}

// / Down decrements the reference count and reports whether it reached
// / zero.
func (r *Objref_t) Down() bool {
	r.Lock()
	r.refcnt--
	z := r.refcnt == 0
	r.Unlock()
	return z
}

// / Objcache_t is a fixed-capacity, refcounted LRU keyed by int (a block
// / number or inode number). The key -> *list.Element index is a
// / hashtable.Hashtable_t (the same bucketed, chained hash table the
// / teacher built for exactly this kind of lookup) rather than a plain
// / Go map; the LRU order itself still rides container/list, the same
// / discipline BlkList_t uses for the log/buffer-cache lists. Live
// / (refcnt > 0) entries are never evicted; Tryevict-marked entries are
// / reclaimed before unmarked ones when the cache is full.
type Objcache_t struct {
	sync.Mutex
	maxsz int
	idx   *hashtable.Hashtable_t
	lru   *list.List // front = most recently used
}

// / objcacheBuckets picks a hashtable.Hashtable_t bucket count for a
// / cache sized sz: enough buckets to keep chains short at full
// / occupancy without wasting much on the (typically small) fs caches.
func objcacheBuckets(sz int) int {
	if sz < 16 {
		return 16
	}
	return sz
}

// / MkObjcache creates an empty cache of capacity sz. Add evicts to stay
// / within sz while an entry is reclaimable; when every entry is live it
// / inserts anyway and the cache grows past sz.
func MkObjcache(sz int) *Objcache_t {
	return &Objcache_t{maxsz: sz, idx: hashtable.MkHash(objcacheBuckets(sz)), lru: list.New()}
}

// / Lookup returns the cached Objref_t for key, bumping its refcount and
// / its LRU position, or (nil, false) on a miss.
func (oc *Objcache_t) Lookup(key int) (*Objref_t, bool) {
	oc.Lock()
	defer oc.Unlock()
	v, ok := oc.idx.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*list.Element)
	oc.lru.MoveToFront(e)
	r := e.Value.(*Objref_t)
	r.Up()
	return r, true
}

// / Add inserts obj under key with an initial refcount of one, evicting
// / the least-recently-used reclaimable entry first if the cache is at
// / capacity (if every entry is live, nothing is evicted and the cache
// / grows past capacity). Returns the new Objref_t.
func (oc *Objcache_t) Add(key int, obj Obj_i) *Objref_t {
	oc.Lock()
	defer oc.Unlock()
	if oc.maxsz > 0 && oc.lru.Len() >= oc.maxsz {
		oc.evictone()
	}
	r := MkObjref(obj)
	e := oc.lru.PushFront(r)
	oc.idx.Set(key, e)
	return r
}

// evictone reclaims one entry, preferring the least-recently-used
// Tryevict-marked entry with a zero refcount; the caller holds oc.Lock.
func (oc *Objcache_t) evictone() {
	var victim *list.Element
	for e := oc.lru.Back(); e != nil; e = e.Prev() {
		r := e.Value.(*Objref_t)
		r.Lock()
		free := r.refcnt == 0
		r.Unlock()
		if !free {
			continue
		}
		if victim == nil {
			victim = e
		}
		if r.obj.Evictnow() {
			victim = e
			break
		}
	}
	if victim == nil {
		return
	}
	r := victim.Value.(*Objref_t)
	r.obj.EvictFromCache()
	oc.idx.Del(r.obj.Key())
	oc.lru.Remove(victim)
	r.obj.EvictDone()
}

// / Remove drops key from the cache outright (used when an object is
// / deleted rather than merely aged out, e.g. a freed inode).
func (oc *Objcache_t) Remove(key int) {
	oc.Lock()
	defer oc.Unlock()
	v, ok := oc.idx.Get(key)
	if !ok {
		return
	}
	oc.idx.Del(key)
	oc.lru.Remove(v.(*list.Element))
}
