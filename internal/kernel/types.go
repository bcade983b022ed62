// Package kernel implements the core of a small multitasking kernel for a 32-bit PC platform,
// simulated in software. It hosts up to six user programs, giving each a private address space
// and a private periodic tick while sharing one keyboard, one text display, one read-only file
// system, and one preemptive timer.
package kernel

import (
	"errors"
	"fmt"
)

// PhysAddr is a physical address in the simulated machine.
type PhysAddr uint32

// VirtAddr is a virtual address translated through the installed page directory.
type VirtAddr uint32

// Fixed layout of the physical and virtual address spaces.
const (
	// VideoPhysAddr is the physical text framebuffer: 80x25 16-bit cells.
	VideoPhysAddr PhysAddr = 0x000B8000

	// ShadowPhysBase is the first of three per-terminal shadow frames, one page each, directly
	// above the framebuffer.
	ShadowPhysBase PhysAddr = 0x000B9000

	// KernelPhysBase and KernelPhysEnd bound the kernel image large page.
	KernelPhysBase PhysAddr = 0x00400000
	KernelPhysEnd  PhysAddr = 0x00800000

	// ProgPhysBase is the physical base of the per-slot program frames, 4 MB each.
	ProgPhysBase PhysAddr = KernelPhysEnd

	// PagingPhysBase is the physical region holding per-slot page directories and tables.
	PagingPhysBase PhysAddr = 31 * 0x400000

	// ProgVirtBase is the user program window: one 4 MB page per process.
	ProgVirtBase VirtAddr = 0x08000000

	// ProgPageSize is the size of the program window.
	ProgPageSize = 0x400000

	// ProgLinkOffset is where an executable image lands within the program window.
	ProgLinkOffset = 0x48000

	// ProgLinkStart is the virtual address of a loaded image.
	ProgLinkStart = ProgVirtBase + ProgLinkOffset

	// UserStackTop is the initial user stack pointer, at the top of the program window.
	UserStackTop = ProgVirtBase + VirtAddr(ProgPageSize)

	// VideoVirtAddr is the fixed user virtual address of the per-process console page.
	VideoVirtAddr VirtAddr = 0x08400000

	pageSize  = 0x1000
	largePage = 0x400000
)

// Task limits.
const (
	// MaxProcs is the number of process slots.
	MaxProcs = 6

	// MaxFDs is the size of each process's file descriptor table.
	MaxFDs = 8

	// MaxNameLen bounds a program name; MaxArgsLen bounds the argument string.
	MaxNameLen = 128
	MaxArgsLen = 128

	// KernelStackSize is the size of each per-slot kernel stack region.
	KernelStackSize = 0x2000
)

// Errors reported by kernel operations. System calls flatten all of these to -1.
var (
	ErrNotFound     = errors.New("kernel: not found")
	ErrBadImage     = errors.New("kernel: invalid executable image")
	ErrExhausted    = errors.New("kernel: out of resources")
	ErrBadArg       = errors.New("kernel: invalid argument")
	ErrNotSupported = errors.New("kernel: unsupported operation")
)

// A fault is a CPU exception raised by user-mode execution: a page fault, a protection
// violation, or a jump through a wild entry point. Faults terminate the offending process.
type fault struct {
	what  string
	addr  uint32
	write bool
}

func (f *fault) Error() string {
	mode := "read"
	if f.write {
		mode = "write"
	}

	return fmt.Sprintf("%s at %#08x (%s)", f.what, f.addr, mode)
}

func pageFault(va VirtAddr, write bool) *fault {
	return &fault{what: "page fault", addr: uint32(va), write: write}
}

func protFault(va VirtAddr, write bool) *fault {
	return &fault{what: "protection violation", addr: uint32(va), write: write}
}
