package mem

// Fixed virtual-address-space layout shared by every process (spec.md
// §4.4/§6): the trampoline page and each process's trapframe sit at the
// top of the 39-bit address space, above the highest address a process
// may ask mmap/sbrk for, so a trap can save/restore user registers
// before the page table swaps away from the faulting process's own.
// Grounded on xv6-riscv's memlayout.h (TRAMPOLINE/TRAPFRAME at MAXVA),
// adapted to this package's Pa_t/uintptr split (these are virtual, not
// physical, addresses, but the call sites that need them already work
// in mem.Pa_t-shaped arithmetic).

// / MAXVA is one past the highest virtual address in use: 1<<38, one bit
// / less than the full 39 bits Sv39's three-level, 9-bit-per-level page
// / table can address (1<<(9+9+9+12)), so no address in use has bit 38
// / set and sign-extension of bit 38 never has to be special-cased.
const MAXVA = 1 << (9 + 9 + 9 + 12 - 1)

// / TRAMPOLINE is the top page of every address space: a single
// / physical page, mapped read+execute (never PTE_U) at the identical
// / virtual address in the kernel page table and in every process's
// / user page table, holding the U<->S trap entry/exit code so the
// / trap handler can switch satp without losing its own instruction
// / stream out from under it.
const TRAMPOLINE = MAXVA - PGSIZE

// / TRAPFRAME sits directly below TRAMPOLINE: one page per process,
// / mapped read+write (never PTE_U) holding that process's Trapframe_t
// / (saved kernel sp/satp/trap handler, saved user registers).
const TRAPFRAME = TRAMPOLINE - PGSIZE

// / USERMIN is the lowest virtual address user code/data may ever
// / occupy; the zero page stays unmapped so a null pointer dereference
// / always faults instead of silently reading/writing memory (spec.md
// / §4.4's "a process's address space never maps virtual address 0").
const USERMIN = PGSIZE
