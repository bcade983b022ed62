package kernel

// sched.go preempts on the periodic timer: round-robin over runnable slots, starting one past
// the caller's slot.

// pitTick is the preemption timer handler.
func (k *Kernel) pitTick() {
	k.clock.schedule(k.pitTick, pitInterval)

	if !k.pic.Enabled(IRQPIT) {
		return
	}

	k.schedule()
}

// schedule picks the next runnable slot after the current one and switches to it. With no other
// runnable slot, control stays where it is.
func (k *Kernel) schedule() {
	cur := k.current

	for off := 1; off < MaxProcs; off++ {
		p := k.pcbs[(cur.Slot+off)%MaxProcs]

		if p.InUse && p.Status == StatusRunnable {
			k.contextSwitch(cur, p)
			return
		}
	}

	k.pic.Ack(IRQPIT)
}

// contextSwitch suspends cur and resumes next:
//
//  1. cur's context is already saved — it is the suspended goroutine itself.
//  2. Install next's page directory.
//  3. Rebind next's console page to the frame its terminal currently owns.
//  4. Point the kernel stack at next's stack region.
//  5. Acknowledge the tick and resume next — a first-time privilege transition if it has never
//     run, otherwise it continues exactly where it was preempted.
func (k *Kernel) contextSwitch(cur, next *PCB) {
	k.setConsoleFrame(next.Slot, k.consoleFramePhys(next.Terminal))
	k.install(next.Slot)
	k.esp0 = stackTopPhys(next.Slot)
	k.current = next

	k.pic.Ack(IRQPIT)
	k.swapContext(cur, next)

	// cur has the CPU again: restore its own translation before resuming.
	k.install(cur.Slot)
	k.esp0 = stackTopPhys(cur.Slot)
	k.current = cur
}
