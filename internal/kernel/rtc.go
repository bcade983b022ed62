package kernel

// rtc.go virtualizes the periodic tick source. One hardware source interrupts at a fixed
// maximum rate; each process divides it down independently through the (interval, remaining)
// pair in its PCB.

// Tick source rate limits, in Hz. Rates must be powers of two.
const (
	tickMinHz = 2
	tickMaxHz = TickHz
)

// sourceTick is the hardware tick handler: it counts down every in-use, tick-enabled process.
// Rearming happens in tickRead once the owner observes the expiry.
func (k *Kernel) sourceTick() {
	k.clock.schedule(k.sourceTick, tickInterval)

	if !k.pic.Enabled(IRQTick) {
		return
	}

	for _, p := range k.pcbs {
		if p.InUse && p.tick.enabled && p.tick.remaining > 0 {
			p.tick.remaining--
		}
	}

	k.pic.Ack(IRQTick)
}

// tickOpen enables the process's tick state at the default 2 Hz rate.
func (k *Kernel) tickOpen(p *PCB) {
	p.tick = tickState{
		enabled:   true,
		interval:  TickHz / tickMinHz,
		remaining: TickHz / tickMinHz,
	}

	k.pic.Enable(IRQTick)
}

// tickClose disables the process's tick state.
func (k *Kernel) tickClose(p *PCB) {
	p.tick.enabled = false
}

// tickWrite reprograms the process's rate. The value must be a power of two in [2, 1024].
func (k *Kernel) tickWrite(p *PCB, hz uint32) int32 {
	if hz < tickMinHz || hz > tickMaxHz || hz&(hz-1) != 0 {
		return -1
	}

	p.tick.interval = TickHz / hz

	return 0
}

// tickRead blocks, with interrupts enabled, until the process's countdown expires; then it
// rearms the countdown and returns.
func (k *Kernel) tickRead(p *PCB) int32 {
	if !p.tick.enabled {
		return -1
	}

	for p.tick.remaining != 0 {
		k.hlt()
	}

	p.tick.remaining = p.tick.interval

	return 0
}
