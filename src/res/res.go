// Package res enforces the per-syscall resource budget that package
// bounds' constants are denominated in: before a loop that copies pages,
// walks an iovec, or writes log blocks takes another lap, it charges the
// lap against the current hart's remaining budget and bails with
// defs.ENOHEAP rather than spin unboundedly on adversarial input.
// Grounded on the teacher's res.Resadd_noblock call sites in vm/as.go and
// vm/userbuf.go.
package res

import "hart"

// / perhart_budget is how many "units" (pages, iovec entries, blocks...)
// / a single syscall may consume across every bounded loop it runs,
// / reset at syscall entry by Reset.
const perhart_budget = 1 << 20

var remaining [hart.NCPU]uint

// / Reset restores the calling hart's budget to full. Called by the
// / syscall dispatcher (package sysc) before invoking a syscall handler.
func Reset() {
	remaining[hart.Hartid()] = perhart_budget
}

// / Resadd_noblock charges gimme units against the calling hart's
// / remaining syscall budget, returning false if it would go negative
// / (the caller must then bail out with defs.ENOHEAP). Safe to call from
// / a tight loop: cheap, non-blocking, and does not itself acquire any
// / lock.
func Resadd_noblock(gimme uint) bool {
	h := hart.Hartid()
	if remaining[h] < gimme {
		return false
	}
	remaining[h] -= gimme
	return true
}
