package kernel

// clock.go keeps machine time. Time is a virtual cycle counter advanced by user-mode memory
// traffic and system calls; timer devices are events scheduled on the counter. Pending events
// fire at instruction boundaries, so kernel paths between boundaries are atomic.

import (
	"runtime"
	"time"
)

// Cycles counts virtual machine cycles.
type Cycles uint64

// Timing of the simulated machine.
const (
	// CyclesPerSecond is the virtual clock rate. A power of two, so the tick source divides
	// evenly.
	CyclesPerSecond Cycles = 1 << 20

	// PITHz is the preemption timer rate; TickHz is the fixed rate of the tick source that the
	// per-process tick virtualizer divides.
	PITHz  = 100
	TickHz = 1024

	pitInterval  = CyclesPerSecond / PITHz
	tickInterval = CyclesPerSecond / TickHz

	memAccessCost Cycles = 4
	syscallCost   Cycles = 32
)

type clockEvent struct {
	at   Cycles
	fire func()
}

// clock is an ordered event queue over virtual time.
type clock struct {
	now    Cycles
	events []clockEvent
}

// schedule queues fn to fire delay cycles from now. Events at the same instant fire in the order
// they were scheduled.
func (c *clock) schedule(fn func(), delay Cycles) {
	ev := clockEvent{at: c.now + delay, fire: fn}

	i := len(c.events)
	for i > 0 && c.events[i-1].at > ev.at {
		i--
	}

	c.events = append(c.events, clockEvent{})
	copy(c.events[i+1:], c.events[i:])
	c.events[i] = ev
}

// advance moves time forward n cycles, firing due events in order. Event handlers may suspend
// the caller (a context switch); time already consumed stays consumed on resume.
func (c *clock) advance(n Cycles) {
	target := c.now + n

	for len(c.events) > 0 && c.events[0].at <= target {
		ev := c.events[0]
		c.events = c.events[1:]

		if ev.at > c.now {
			c.now = ev.at
		}

		ev.fire()
	}

	if c.now < target {
		c.now = target
	}
}

// advanceToNext jumps straight to the next event and fires it. This is the idle path: a halted
// CPU sleeps until the next interrupt.
func (c *clock) advanceToNext() {
	if len(c.events) == 0 {
		return
	}

	ev := c.events[0]
	c.events = c.events[1:]

	if ev.at > c.now {
		c.now = ev.at
	}

	ev.fire()
}

// nextDelay returns the time until the next event.
func (c *clock) nextDelay() Cycles {
	if len(c.events) == 0 {
		return 0
	}

	if c.events[0].at <= c.now {
		return 0
	}

	return c.events[0].at - c.now
}

// Now returns the current virtual time.
func (c *clock) Now() Cycles { return c.now }

// wallDuration converts a cycle count to wall-clock time for real-time pacing.
func wallDuration(c Cycles) time.Duration {
	return time.Duration(uint64(c) * uint64(time.Second) / uint64(CyclesPerSecond))
}

// window is an instruction boundary: the point where the machine services pending input and
// timer interrupts. Every user memory access and system call passes through one.
func (k *Kernel) window(cost Cycles) {
	k.checkStop()
	k.serviceInput()
	k.clock.advance(cost)
	k.cycles.Store(uint64(k.clock.now))
}

// hlt suspends the current process until the next interrupt, with interrupts enabled. Blocking
// reads call it between polls of their predicate.
func (k *Kernel) hlt() {
	k.checkStop()
	k.serviceInput()

	if k.realtime {
		delay := wallDuration(k.clock.nextDelay())

		select {
		case <-k.stop:
			runtime.Goexit()
		case code := <-k.keys:
			k.handleKey(code)
			return
		case <-time.After(delay):
		}
	}

	k.clock.advanceToNext()
	k.cycles.Store(uint64(k.clock.now))
}

// serviceInput drains queued scancodes into the keyboard service routine, honoring the
// controller mask.
func (k *Kernel) serviceInput() {
	if !k.pic.Enabled(IRQKeyboard) {
		return
	}

	for {
		select {
		case code := <-k.keys:
			k.handleKey(code)
		default:
			return
		}
	}
}

func (k *Kernel) handleKey(code byte) {
	if !k.pic.Enabled(IRQKeyboard) {
		return
	}

	k.tty.HandleScancode(code)
	k.pic.Ack(IRQKeyboard)
}

// checkStop terminates the calling process context if the machine is shutting down.
func (k *Kernel) checkStop() {
	select {
	case <-k.stop:
		runtime.Goexit()
	default:
	}
}
