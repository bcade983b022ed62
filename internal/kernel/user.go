package kernel

// user.go is the user-mode execution surface. A program body runs against a UserContext: checked
// loads and stores into its own address space, and the system-call gate. Every access is an
// instruction boundary where pending interrupts are serviced, so a compute-bound program is
// preempted through its own memory traffic.

// Program is the body of a user program, selected by the entry point of its loaded image. The
// return value becomes the process's halt status.
type Program func(u *UserContext) int32

// UserContext is one process's view of the machine.
type UserContext struct {
	k *Kernel
	p *PCB
}

// PID returns the process identifier.
func (u *UserContext) PID() uint32 { return u.p.PID }

// Syscall enters the kernel through the system-call gate.
func (u *UserContext) Syscall(num, a, b, c uint32) int32 {
	u.k.window(syscallCost)

	return u.k.dispatch(u.p, num, a, b, c)
}

// LoadByte loads one byte from the process's address space. An unmapped or privileged address
// raises an exception that terminates the process.
func (u *UserContext) LoadByte(va VirtAddr) byte {
	u.k.window(memAccessCost)

	pa, f := u.k.translate(va, true, false)
	if f != nil {
		panic(f)
	}

	return u.k.physLoad8(pa)
}

// StoreByte stores one byte into the process's address space.
func (u *UserContext) StoreByte(va VirtAddr, v byte) {
	u.k.window(memAccessCost)

	pa, f := u.k.translate(va, true, true)
	if f != nil {
		panic(f)
	}

	u.k.physStore8(pa, v)
}

// Load16 loads a 16-bit word; the console page is addressed in these.
func (u *UserContext) Load16(va VirtAddr) uint16 {
	u.k.window(memAccessCost)

	pa, f := u.k.translate(va, true, false)
	if f != nil {
		panic(f)
	}

	return u.k.physLoad16(pa)
}

// Store16 stores a 16-bit word.
func (u *UserContext) Store16(va VirtAddr, v uint16) {
	u.k.window(memAccessCost)

	pa, f := u.k.translate(va, true, true)
	if f != nil {
		panic(f)
	}

	u.k.physStore16(pa, v)
}

// Load32 loads a 32-bit word.
func (u *UserContext) Load32(va VirtAddr) uint32 {
	u.k.window(memAccessCost)

	pa, f := u.k.translate(va, true, false)
	if f != nil {
		panic(f)
	}

	return u.k.physLoad32(pa)
}

// Store32 stores a 32-bit word.
func (u *UserContext) Store32(va VirtAddr, v uint32) {
	u.k.window(memAccessCost)

	pa, f := u.k.translate(va, true, true)
	if f != nil {
		panic(f)
	}

	u.k.physStore32(pa, v)
}

// Poke copies bytes into the process's address space, one checked store at a time.
func (u *UserContext) Poke(va VirtAddr, data []byte) {
	for i, b := range data {
		u.StoreByte(va+VirtAddr(i), b)
	}
}

// PeekBytes copies n bytes out of the process's address space.
func (u *UserContext) PeekBytes(va VirtAddr, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = u.LoadByte(va + VirtAddr(i))
	}

	return out
}

// The staging buffer: a scratch region below the user stack where the typed wrappers place
// strings and buffers before passing their addresses through the gate.
const (
	userScratch     VirtAddr = UserStackTop - 2*pageSize
	userScratchSize          = pageSize
)

// stage copies data into the staging buffer and returns its address.
func (u *UserContext) stage(data []byte) VirtAddr {
	if len(data) > userScratchSize {
		data = data[:userScratchSize]
	}

	u.Poke(userScratch, data)

	return userScratch
}

// Typed wrappers over the raw gate, in the shape of a user-side system library.

// Halt ends the process with an 8-bit status. It does not return.
func (u *UserContext) Halt(status uint8) {
	u.Syscall(SysHalt, uint32(status), 0, 0)
}

// Execute runs a command and blocks until the child halts, returning its status.
func (u *UserContext) Execute(command string) int32 {
	va := u.stage(append([]byte(command), 0))

	return u.Syscall(SysExecute, uint32(va), 0, 0)
}

// Open binds the named file to a descriptor.
func (u *UserContext) Open(name string) int32 {
	va := u.stage(append([]byte(name), 0))

	return u.Syscall(SysOpen, uint32(va), 0, 0)
}

// Close releases a descriptor.
func (u *UserContext) Close(fd int32) int32 {
	return u.Syscall(SysClose, uint32(fd), 0, 0)
}

// Read reads up to len(buf) bytes from a descriptor into buf, returning the count.
func (u *UserContext) Read(fd int32, buf []byte) int32 {
	n := len(buf)
	if n > userScratchSize {
		n = userScratchSize
	}

	ret := u.Syscall(SysRead, uint32(fd), uint32(userScratch), uint32(n))
	if ret > 0 {
		copy(buf, u.PeekBytes(userScratch, int(ret)))
	}

	return ret
}

// Write writes buf to a descriptor, returning the count written.
func (u *UserContext) Write(fd int32, buf []byte) int32 {
	va := u.stage(buf)

	n := len(buf)
	if n > userScratchSize {
		n = userScratchSize
	}

	return u.Syscall(SysWrite, uint32(fd), uint32(va), uint32(n))
}

// WriteString writes a string to a descriptor.
func (u *UserContext) WriteString(fd int32, s string) int32 {
	return u.Write(fd, []byte(s))
}

// GetArgs copies the process's argument string into buf.
func (u *UserContext) GetArgs(buf []byte) int32 {
	n := len(buf)
	if n > userScratchSize {
		n = userScratchSize
	}

	ret := u.Syscall(SysGetargs, uint32(userScratch), uint32(n), 0)
	if ret == 0 {
		copy(buf, u.PeekBytes(userScratch, n))
	}

	return ret
}

// Vidmap maps the console page and returns its fixed user virtual address.
func (u *UserContext) Vidmap() (VirtAddr, int32) {
	ret := u.Syscall(SysVidmap, uint32(userScratch), 0, 0)
	if ret != 0 {
		return 0, ret
	}

	va := VirtAddr(u.Load32(userScratch))

	return va, 0
}
