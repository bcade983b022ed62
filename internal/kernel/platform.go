package kernel

// platform.go is the thin platform layer: the two primitives that move the CPU between process
// contexts. A context is a goroutine that runs only while it holds the CPU grant; everything
// else in the kernel is platform-independent.

import (
	"runtime"
)

// procContext is the saved execution context of a process: a parked goroutine and the channel
// that resumes it.
type procContext struct {
	resume chan struct{}
}

// spawnContext creates a parked context for a process. The goroutine waits for its first grant
// and then enters user mode at the process's entry point.
func (k *Kernel) spawnContext(p *PCB) {
	p.ctx = &procContext{resume: make(chan struct{})}

	go func() {
		p.ctx.wait(k)
		k.runUser(p)
	}()
}

// wait parks the caller until it is granted the CPU or the machine stops.
func (c *procContext) wait(k *Kernel) {
	select {
	case <-c.resume:
	case <-k.stop:
		runtime.Goexit()
	}
}

// grant hands the CPU to a context. The caller must not touch kernel state afterwards except to
// park or exit.
func (k *Kernel) grant(p *PCB) {
	select {
	case p.ctx.resume <- struct{}{}:
	case <-k.stop:
		runtime.Goexit()
	}
}

// swapContext suspends prev and resumes next. When prev is granted the CPU again, the call
// returns and prev continues exactly where it was.
func (k *Kernel) swapContext(prev, next *PCB) {
	k.grant(next)
	prev.ctx.wait(k)
}
