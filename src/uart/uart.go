// Package uart drives the 16550-compatible serial port QEMU's `virt`
// machine exposes at 0x10000000, and layers a line-buffered console
// device on top of it (spec.md §4 item 4). Grounded on xv6-riscv's
// uart.c/console.c register layout and line-discipline (the direct
// ancestor spec.md names), expressed in this kernel's idiom: an
// Fdops_i-backed device (like pipe's pipeFops_t) instead of a bare
// read()/write() pair, MMIO access through mem.Dmap8 rather than a
// dedicated inb/outb seam.
package uart

import (
	"sync"
	"unsafe"

	"defs"
	"fdops"
	"mem"
	"stat"
)

// 16550 register offsets (byte-addressed, QEMU's virt UART has no
// register stride).
const (
	rhr = 0 // receive holding register (read)
	thr = 0 // transmit holding register (write)
	ier = 1 // interrupt enable register
	fcr = 2 // FIFO control register
	isr = 2 // interrupt status register (read)
	lcr = 3 // line control register
	lsr = 5 // line status register
)

const (
	lsrRxReady = 1 << 0
	lsrTxIdle  = 1 << 5
)

func reg(n int) *uint8 {
	return &mem.Dmaplen(mem.Pa_t(mem.UART0), mem.UART0_SZ)[n]
}

func readReg(n int) uint8  { return *(*uint8)(unsafe.Pointer(reg(n))) }
func writeReg(n int, v uint8) { *(*uint8)(unsafe.Pointer(reg(n))) = v }

// / Init programs the UART for 8N1 at a fixed divisor and enables the
// / receive-data-available interrupt. Called once at boot, before paging
// / is enabled the kernel uses Putc directly for panic output.
func Init() {
	writeReg(ier, 0x00)
	// set DLAB, program divisor for 38.4k at an assumed 1.8432MHz clock
	writeReg(lcr, 0x80)
	writeReg(0, 0x03)
	writeReg(1, 0x00)
	// 8 bits, no parity, one stop bit; clear DLAB
	writeReg(lcr, 0x03)
	writeReg(fcr, 0x07)
	writeReg(ier, 0x01)
}

// / Putc writes a single byte to the transmit holding register,
// / spinning until the transmitter is idle. Safe to call before paging
// / or interrupts are enabled.
func Putc(c uint8) {
	for readReg(lsr)&lsrTxIdle == 0 {
	}
	writeReg(thr, c)
}

// / Writer adapts Putc to io.Writer so fmt.Fprintf(uart.Writer, ...) can
// / target the console the way the teacher's debug-flag logging does
// / (spec.md's ambient logging stack, SPEC_FULL.md AMBIENT STACK).
type writer_t struct{}

func (writer_t) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' {
			Putc('\r')
		}
		Putc(c)
	}
	return len(p), nil
}

// / Writer is the UART's io.Writer: fmt.Fprintf(uart.Writer, ...) is this
// / kernel's only logging sink (no syslog/zap/zerolog - see SPEC_FULL.md).
var Writer writer_t

const inputBufSz = 128

// / console_t is the line-buffered console device: Intr feeds it raw
// / bytes from the UART's receive interrupt; readers block until a
// / newline (or Ctrl-D) completes a line, matching xv6's console
// / discipline.
type console_t struct {
	sync.Mutex
	buf        [inputBufSz]uint8
	r, w, e    uint // read, write, edit indices; r <= e <= w (mod sz)
	echo       bool
}

var console console_t

func init() {
	console.echo = true
}

const (
	ctrlD = 0x04
	bs    = 0x08
	del   = 0x7f
)

var (
	sleepFn  func(chan_ unsafe.Pointer, lk Locker_i)
	wakeFn   func(chan_ unsafe.Pointer)
	killedFn func() bool
)

// / Locker_i mirrors pipe.Locker_i: the minimal interface sleep needs.
type Locker_i interface {
	Lock()
	Unlock()
}

// / RegisterSched wires the scheduler's blocking primitives into this
// / package (spec.md §5: console read is a suspension point).
func RegisterSched(sleep func(unsafe.Pointer, Locker_i), wake func(unsafe.Pointer), killed func() bool) {
	sleepFn, wakeFn, killedFn = sleep, wake, killed
}

func chan_input() unsafe.Pointer { return unsafe.Pointer(&console.r) }

// / Intr drains the bytes the UART has ready into the console line
// / buffer. Nothing in this module calls it: package proc's
// / external-interrupt hook (plicIntr) is never set. It implements line editing
// / (backspace erases the previous unconsumed byte, Ctrl-D flushes the
// / pending line immediately) and echoes input back to the terminal.
func Intr() {
	for readReg(lsr)&lsrRxReady != 0 {
		c := readReg(rhr)
		console.Lock()
		switch c {
		case ctrlD:
			// deliver a zero-length line, signalling EOF to the reader
			console.w = console.e
			wakeFn(chan_input())
		case bs, del:
			if console.e != console.w {
				console.e--
				if console.echo {
					Putc(bs)
					Putc(' ')
					Putc(bs)
				}
			}
		default:
			if console.e-console.r < inputBufSz {
				console.buf[console.e%inputBufSz] = c
				console.e++
				if console.echo {
					Putc(c)
				}
				if c == '\r' || c == '\n' || console.e-console.w >= inputBufSz {
					console.buf[(console.e-1)%inputBufSz] = '\n'
					console.w = console.e
					wakeFn(chan_input())
				}
			}
		}
		console.Unlock()
	}
}

// / Read implements a blocking console read: sleeps until a full line
// / (or EOF) has been committed by Intr, then delivers it byte by byte.
// / Fdops_i-shaped so /console's Fd_t.Fops can be this directly.
type consoleFops_t struct {
	fdops.NullFdops_t
}

// / Device is the Fdops_i for /console, installed on fd 0/1/2 by init
// / (spec.md §6 boot sequence).
var Device fdops.Fdops_i = consoleFops_t{}

func (consoleFops_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	console.Lock()
	defer console.Unlock()
	n := 0
	for dst.Remain() > 0 {
		for console.r == console.w {
			if killedFn != nil && killedFn() {
				return n, -defs.EINTR
			}
			sleepFn(chan_input(), &console)
		}
		c := console.buf[console.r%inputBufSz]
		console.r++
		b := []uint8{c}
		_, err := dst.Uiowrite(b)
		if err != 0 {
			return n, err
		}
		n++
		if c == '\n' {
			break
		}
	}
	return n, 0
}

func (consoleFops_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	n := 0
	buf := make([]uint8, 128)
	for src.Remain() > 0 {
		did, err := src.Uioread(buf)
		if err != 0 {
			return n, err
		}
		if did == 0 {
			break
		}
		Writer.Write(buf[:did])
		n += did
	}
	return n, 0
}

func (consoleFops_t) Fstat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(0)
	return 0
}

func (consoleFops_t) Close() defs.Err_t  { return 0 }
func (consoleFops_t) Reopen() defs.Err_t { return 0 }
