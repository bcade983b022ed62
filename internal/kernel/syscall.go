package kernel

// syscall.go is the gate between unprivileged programs and the core: validate arguments, route
// to the owning subsystem, flatten every non-fatal error to -1.

// System call numbers.
const (
	SysHalt       = 1
	SysExecute    = 2
	SysRead       = 3
	SysWrite      = 4
	SysOpen       = 5
	SysClose      = 6
	SysGetargs    = 7
	SysVidmap     = 8
	SysSetHandler = 9
	SysSigreturn  = 10
)

// dispatch routes one system call for the current process. Pointer arguments are validated to
// lie within the caller's program window before any dereference; violations return -1. Unknown
// call numbers return -1.
func (k *Kernel) dispatch(p *PCB, num, a, b, c uint32) int32 {
	switch num {
	case SysHalt:
		k.exitCurrent(p, int32(uint8(a)))
		return -1 // Unreachable; halt does not return.

	case SysExecute:
		command, ok := k.readUserString(p, VirtAddr(a), MaxNameLen+MaxArgsLen+2)
		if !ok {
			return -1
		}

		return k.sysExecute(p, command)

	case SysRead:
		return k.sysRead(p, int32(a), VirtAddr(b), int32(c))

	case SysWrite:
		return k.sysWrite(p, int32(a), VirtAddr(b), int32(c))

	case SysOpen:
		name, ok := k.readUserString(p, VirtAddr(a), MaxNameLen+1)
		if !ok {
			return -1
		}

		return k.sysOpen(p, name)

	case SysClose:
		return k.sysClose(p, int32(a))

	case SysGetargs:
		return k.sysGetargs(p, VirtAddr(a), int32(b))

	case SysVidmap:
		return k.sysVidmap(p, VirtAddr(a))

	case SysSetHandler, SysSigreturn:
		// Signal support is not implemented.
		return -1

	default:
		return -1
	}
}

// sysGetargs copies the process's argument string, NUL-terminated, into the user buffer. It
// fails if the buffer is out of bounds or too small for the arguments and the terminator.
func (k *Kernel) sysGetargs(p *PCB, buf VirtAddr, nbytes int32) int32 {
	if int32(len(p.Args))+1 > nbytes {
		return -1
	}

	if !userRange(buf, nbytes) {
		return -1
	}

	k.copyToUser(p, buf, append([]byte(p.Args), 0))

	return 0
}

// sysVidmap writes the fixed user virtual address of the per-process console page through the
// given pointer.
func (k *Kernel) sysVidmap(p *PCB, out VirtAddr) int32 {
	if !userRange(out, 4) {
		return -1
	}

	k.storeUser32(p, out, uint32(VideoVirtAddr))

	return 0
}
