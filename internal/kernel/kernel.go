package kernel

// kernel.go assembles the machine from its parts and runs it.

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/psyche-os/psyche/internal/console"
	"github.com/psyche-os/psyche/internal/fs"
	"github.com/psyche-os/psyche/internal/log"
)

// Kernel is the whole machine: physical storage, per-slot translations, the console multiplexor,
// the file system, the PCB pool, and the clock. All kernel state is owned by whichever process
// context currently holds the CPU; the lock covers only the snapshots handed to other
// goroutines, such as the machine monitor.
type Kernel struct {
	log *log.Logger

	fsys *fs.FileSystem
	tty  *console.Multiplexor

	frames [MaxProcs][]byte
	paging [MaxProcs]AddressSpace
	cr3    int
	tlb    map[uint32]tlbEntry
	esp0   PhysAddr

	pcbs    [MaxProcs]*PCB
	current *PCB
	nextPID uint32

	clock  clock
	cycles atomic.Uint64
	pic    *controller

	keys chan byte

	stop     chan struct{}
	stopOnce sync.Once

	realtime bool
	programs map[uint32]Program
	bootCmd  string

	mut sync.Mutex
}

// An OptionFn modifies the machine during initialization.
type OptionFn func(*Kernel)

// WithLogger replaces the kernel's logger.
func WithLogger(logger *log.Logger) OptionFn {
	return func(k *Kernel) {
		k.log = logger
		k.tty.WithLogger(logger)
	}
}

// WithPrograms registers the user program bodies, keyed by entry point.
func WithPrograms(programs map[uint32]Program) OptionFn {
	return func(k *Kernel) {
		for entry, body := range programs {
			k.programs[entry] = body
		}
	}
}

// WithRealtime paces the idle machine against the wall clock. Without it, idle time is skipped,
// which is what tests want.
func WithRealtime() OptionFn {
	return func(k *Kernel) { k.realtime = true }
}

// WithBootCommand overrides the program spawned on each terminal at boot.
func WithBootCommand(command string) OptionFn {
	return func(k *Kernel) { k.bootCmd = command }
}

// New creates a machine that boots from the given file-system image.
func New(image []byte, opts ...OptionFn) (*Kernel, error) {
	fsys, err := fs.New(image)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		log:      log.DefaultLogger(),
		fsys:     fsys,
		tty:      console.New(),
		tlb:      make(map[uint32]tlbEntry),
		pic:      newController(),
		keys:     make(chan byte, 256),
		stop:     make(chan struct{}),
		programs: make(map[uint32]Program),
		bootCmd:  "shell",
	}

	for i := range k.frames {
		k.frames[i] = make([]byte, ProgPageSize)
	}

	for i := range k.pcbs {
		k.pcbs[i] = &PCB{Slot: i}
	}

	// Terminal switches rebind the console page of every process on the terminals involved.
	k.tty.OnSwitch(func(prev, next int) {
		for _, p := range k.pcbs {
			if !p.InUse {
				continue
			}

			switch p.Terminal {
			case prev:
				k.setConsoleFrame(p.Slot, shadowPhys(prev))
			case next:
				k.setConsoleFrame(p.Slot, VideoPhysAddr)
			}
		}
	})

	for _, fn := range opts {
		fn(k)
	}

	return k, nil
}

// Run boots the machine — one root program per terminal — and runs it until the context is
// cancelled or Shutdown is called.
func (k *Kernel) Run(ctx context.Context) error {
	for t := 0; t < console.NumTerminals; t++ {
		if err := k.bootRoot(t); err != nil {
			k.Shutdown()
			return err
		}
	}

	k.clock.schedule(k.pitTick, pitInterval)
	k.clock.schedule(k.sourceTick, tickInterval)

	k.pic.Enable(IRQPIT)
	k.pic.Enable(IRQKeyboard)

	first := k.pcbs[0]
	k.install(first.Slot)
	k.esp0 = stackTopPhys(first.Slot)
	k.current = first

	k.log.Info("boot", "terminals", console.NumTerminals, "command", k.bootCmd)

	k.grant(first)

	select {
	case <-ctx.Done():
		k.Shutdown()
		return ctx.Err()
	case <-k.stop:
		return nil
	}
}

// bootRoot claims a slot for a root program on the given terminal. Roots have no parent; their
// halt relaunches them.
func (k *Kernel) bootRoot(terminal int) error {
	slot := k.freeSlot()
	if slot < 0 {
		return fmt.Errorf("%w: no free slot for terminal %d", ErrExhausted, terminal)
	}

	entry, err := k.loadProgram(k.bootCmd, slot)
	if err != nil {
		return fmt.Errorf("boot terminal %d: %w", terminal, err)
	}

	p := k.pcbs[slot]

	k.mut.Lock()
	p.Parent = nil
	p.Child = nil
	p.Name = k.bootCmd
	p.Args = ""
	p.Entry = entry
	p.PID = k.nextPID
	p.Terminal = terminal
	p.InUse = true
	p.Status = StatusRunnable
	p.fds = [MaxFDs]FileDesc{}
	p.tick = tickState{}
	k.nextPID++
	k.mut.Unlock()

	bindStdio(p)
	k.buildForSlot(slot, k.consoleFramePhys(terminal))
	k.spawnContext(p)

	return nil
}

// Shutdown stops the machine. Process contexts terminate at their next instruction boundary.
func (k *Kernel) Shutdown() {
	k.stopOnce.Do(func() { close(k.stop) })
}

// PressKey queues raw scancodes from the host. Overruns are dropped, as a keyboard would.
func (k *Kernel) PressKey(codes ...byte) {
	for _, code := range codes {
		select {
		case k.keys <- code:
		default:
			k.log.Warn("keyboard overrun", "code", code)
		}
	}
}

// Type queues the scancode sequence for a string of characters.
func (k *Kernel) Type(s string) error {
	for i := 0; i < len(s); i++ {
		codes, ok := console.ScancodesFor(s[i])
		if !ok {
			return fmt.Errorf("%w: no scancode for %q", ErrBadArg, s[i])
		}

		k.PressKey(codes...)
	}

	return nil
}

// Console exposes the console multiplexor to front-ends and tests.
func (k *Kernel) Console() *console.Multiplexor { return k.tty }

// FileSystem exposes the mounted file system.
func (k *Kernel) FileSystem() *fs.FileSystem { return k.fsys }

// Cycles returns the machine time, safe from any goroutine.
func (k *Kernel) Cycles() Cycles { return Cycles(k.cycles.Load()) }

// Acks returns the number of interrupts delivered on a line.
func (k *Kernel) Acks(irq IRQ) uint64 { return k.pic.Acks(irq) }

// ProcessInfo is a snapshot of one slot for the monitor and tests.
type ProcessInfo struct {
	Slot     int
	PID      uint32
	InUse    bool
	Status   Status
	Terminal int
	Name     string
	Args     string
}

// Processes snapshots the PCB pool.
func (k *Kernel) Processes() []ProcessInfo {
	k.mut.Lock()
	defer k.mut.Unlock()

	out := make([]ProcessInfo, MaxProcs)

	for i, p := range k.pcbs {
		out[i] = ProcessInfo{
			Slot:     p.Slot,
			PID:      p.PID,
			InUse:    p.InUse,
			Status:   p.Status,
			Terminal: p.Terminal,
			Name:     p.Name,
			Args:     p.Args,
		}
	}

	return out
}
