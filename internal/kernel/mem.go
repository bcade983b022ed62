package kernel

// mem.go routes physical addresses to their backing storage: the framebuffer and shadow frames
// live in the console multiplexor, program frames are per-slot byte slabs.

import (
	"fmt"

	"github.com/psyche-os/psyche/internal/console"
)

// progFrame returns the byte slab backing a slot's 4 MB program frame.
func (k *Kernel) progFrame(slot int) []byte {
	return k.frames[slot]
}

// progPhys returns the physical base of a slot's program frame.
func progPhys(slot int) PhysAddr {
	return ProgPhysBase + PhysAddr(slot)*ProgPageSize
}

// stackTopPhys returns the top of a slot's kernel stack region. Stacks are carved downward from
// the end of the kernel page, one region per slot, with the PCB at the region's low end.
func stackTopPhys(slot int) PhysAddr {
	return KernelPhysEnd - PhysAddr(slot)*KernelStackSize
}

// shadowPhys returns the physical address of a terminal's shadow frame.
func shadowPhys(terminal int) PhysAddr {
	return ShadowPhysBase + PhysAddr(terminal)*pageSize
}

// consoleFramePhys returns the physical frame backing the console page of a process on the given
// terminal: the framebuffer if that terminal is active, otherwise the terminal's shadow frame.
func (k *Kernel) consoleFramePhys(terminal int) PhysAddr {
	if terminal == k.tty.Active() {
		return VideoPhysAddr
	}

	return shadowPhys(terminal)
}

// frameTag resolves a physical address within the video region to a console frame.
func frameTag(pa PhysAddr) (console.FrameTag, bool) {
	switch {
	case pa >= VideoPhysAddr && pa < VideoPhysAddr+pageSize:
		return console.DisplayFrame, true
	case pa >= ShadowPhysBase && pa < ShadowPhysBase+console.NumTerminals*pageSize:
		return console.FrameTag((pa - ShadowPhysBase) / pageSize), true
	default:
		return 0, false
	}
}

// physLoad16 loads a 16-bit word from physical memory.
func (k *Kernel) physLoad16(pa PhysAddr) uint16 {
	if tag, ok := frameTag(pa); ok {
		return k.tty.PeekCell(tag, int(pa&(pageSize-1))/2)
	}

	if slot, off, ok := progOffset(pa); ok {
		frame := k.progFrame(slot)
		return uint16(frame[off]) | uint16(frame[off+1])<<8
	}

	panic(fmt.Sprintf("kernel: physical load outside mapped storage: %#08x", uint32(pa)))
}

// physStore16 stores a 16-bit word to physical memory.
func (k *Kernel) physStore16(pa PhysAddr, v uint16) {
	if tag, ok := frameTag(pa); ok {
		k.tty.PokeCell(tag, int(pa&(pageSize-1))/2, v)
		return
	}

	if slot, off, ok := progOffset(pa); ok {
		frame := k.progFrame(slot)
		frame[off] = byte(v)
		frame[off+1] = byte(v >> 8)

		return
	}

	panic(fmt.Sprintf("kernel: physical store outside mapped storage: %#08x", uint32(pa)))
}

// physLoad8 loads a byte from physical memory.
func (k *Kernel) physLoad8(pa PhysAddr) byte {
	if _, ok := frameTag(pa); ok {
		cell := k.physLoad16(pa &^ 1)
		if pa&1 != 0 {
			return byte(cell >> 8)
		}

		return byte(cell)
	}

	if slot, off, ok := progOffset(pa); ok {
		return k.progFrame(slot)[off]
	}

	panic(fmt.Sprintf("kernel: physical load outside mapped storage: %#08x", uint32(pa)))
}

// physStore8 stores a byte to physical memory.
func (k *Kernel) physStore8(pa PhysAddr, v byte) {
	if _, ok := frameTag(pa); ok {
		cell := k.physLoad16(pa &^ 1)
		if pa&1 != 0 {
			cell = cell&0x00FF | uint16(v)<<8
		} else {
			cell = cell&0xFF00 | uint16(v)
		}
		k.physStore16(pa&^1, cell)

		return
	}

	if slot, off, ok := progOffset(pa); ok {
		k.progFrame(slot)[off] = v
		return
	}

	panic(fmt.Sprintf("kernel: physical store outside mapped storage: %#08x", uint32(pa)))
}

// physLoad32 loads a 32-bit word from physical memory.
func (k *Kernel) physLoad32(pa PhysAddr) uint32 {
	if slot, off, ok := progOffset(pa); ok && off+4 <= ProgPageSize {
		frame := k.progFrame(slot)
		return uint32(frame[off]) | uint32(frame[off+1])<<8 |
			uint32(frame[off+2])<<16 | uint32(frame[off+3])<<24
	}

	return uint32(k.physLoad16(pa)) | uint32(k.physLoad16(pa+2))<<16
}

// physStore32 stores a 32-bit word to physical memory.
func (k *Kernel) physStore32(pa PhysAddr, v uint32) {
	if slot, off, ok := progOffset(pa); ok && off+4 <= ProgPageSize {
		frame := k.progFrame(slot)
		frame[off] = byte(v)
		frame[off+1] = byte(v >> 8)
		frame[off+2] = byte(v >> 16)
		frame[off+3] = byte(v >> 24)

		return
	}

	k.physStore16(pa, uint16(v))
	k.physStore16(pa+2, uint16(v>>16))
}

// progOffset resolves a physical address to a (slot, offset) within a program frame.
func progOffset(pa PhysAddr) (int, int, bool) {
	if pa < ProgPhysBase || pa >= ProgPhysBase+MaxProcs*ProgPageSize {
		return 0, 0, false
	}

	off := pa - ProgPhysBase

	return int(off / ProgPageSize), int(off % ProgPageSize), true
}
