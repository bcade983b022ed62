package kernel

// kernel_test.go runs whole-machine scenarios: boot, execute/halt nesting, preemption, terminal
// switching, and the root relaunch.

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/psyche-os/psyche/internal/console"
)

func TestBootThreeTerminals(tt *testing.T) {
	t := NewTestHarness(tt)

	k := t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				u.WriteString(1, "ok> ")
				buf := make([]byte, 64)
				for {
					u.Read(0, buf)
				}
			}},
		},
	})

	t.waitFor("three runnable roots", func() bool {
		procs := k.Processes()
		for slot := 0; slot < console.NumTerminals; slot++ {
			if !procs[slot].InUse || procs[slot].Status != StatusRunnable || procs[slot].Terminal != slot {
				return false
			}
		}
		return true
	})

	t.waitFor("prompt on terminal 0", func() bool { return screenContains(k, "ok>") })

	// Terminal 0's frame is the display.
	if k.Console().Active() != 0 {
		t.Errorf("active terminal: want 0, got %d", k.Console().Active())
	}

	// Alt+F2 brings terminal 1's frame onto the display.
	k.PressKey(console.SwitchScancodes(1)...)

	t.waitFor("terminal 1 active", func() bool { return k.Console().Active() == 1 })
	t.waitFor("prompt on terminal 1", func() bool { return screenContains(k, "ok>") })
}

func TestExecuteHaltNesting(tt *testing.T) {
	t := NewTestHarness(tt)

	type step struct {
		ret    int32
		status Status
	}

	steps := make(chan step, 4)

	k := t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() != 0 {
					return idleBody(u)
				}

				ret := u.Execute("ls")
				steps <- step{ret: ret}

				for {
					u.LoadByte(ProgVirtBase)
				}
			}},
			"ls": {entry: 0x080480c0, body: func(u *UserContext) int32 {
				// While the child runs, the parent is blocked.
				steps <- step{status: u.k.pcbs[0].Status}
				u.Halt(0)
				return 0
			}},
		},
	})

	during := <-steps
	if during.status != StatusBlocked {
		t.Errorf("parent while child runs: want blocked, got %s", during.status)
	}

	after := <-steps
	if after.ret != 0 {
		t.Errorf("execute return: want 0, got %d", after.ret)
	}

	t.waitFor("parent runnable again", func() bool {
		return k.Processes()[0].Status == StatusRunnable
	})
}

func TestExecuteFailures(tt *testing.T) {
	t := NewTestHarness(tt)

	rets := make(chan int32, 8)

	k := t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() != 0 {
					return idleBody(u)
				}

				rets <- u.Execute("readme.txt") // Not an executable image.
				rets <- u.Execute("nope")       // Does not resolve.
				return idleBody(u)
			}},
		},
		files: map[string][]byte{
			"readme.txt": []byte("just some words, no magic"),
		},
	})

	if got := <-rets; got != -1 {
		t.Errorf("execute of a data file: want -1, got %d", got)
	}

	if got := <-rets; got != -1 {
		t.Errorf("execute of a missing file: want -1, got %d", got)
	}

	// The parent is untouched: still runnable, still the only user of its terminal.
	procs := k.Processes()
	if procs[0].Status != StatusRunnable {
		t.Errorf("parent status: want runnable, got %s", procs[0].Status)
	}

	for slot := console.NumTerminals; slot < MaxProcs; slot++ {
		if procs[slot].InUse {
			t.Errorf("slot %d claimed by a failed execute", slot)
		}
	}
}

func TestSlotExhaustion(tt *testing.T) {
	t := NewTestHarness(tt)

	rets := make(chan int32, 2)

	var depth atomic.Int32

	t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() != 0 {
					return idleBody(u)
				}

				rets <- u.Execute("nest")
				return idleBody(u)
			}},
			// Roots occupy 3 slots; nesting claims the other three, and the next execute fails.
			"nest": {entry: 0x080480c0, body: func(u *UserContext) int32 {
				if depth.Add(1) < int32(MaxProcs-console.NumTerminals) {
					u.Halt(uint8(u.Execute("nest")))
				}

				if u.Execute("nest") == -1 {
					u.Halt(0)
				}

				u.Halt(1)
				return 0
			}},
		},
	})

	// The innermost execute fails with -1; statuses propagate zero back up the chain.
	if got := <-rets; got != 0 {
		t.Errorf("nested execute chain: want 0, got %d", got)
	}
}

func TestRootRelaunch(tt *testing.T) {
	t := NewTestHarness(tt)

	k := t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() == 0 {
					u.Halt(7) // The root halts; the kernel must relaunch it with a fresh PID.
				}

				return idleBody(u)
			}},
		},
	})

	t.waitFor("root relaunched with a new pid", func() bool {
		p := k.Processes()[0]
		return p.InUse && p.Status == StatusRunnable && p.PID >= uint32(console.NumTerminals)
	})
}

func TestPreemption(tt *testing.T) {
	t := NewTestHarness(tt)

	var count [console.NumTerminals]atomic.Uint64

	t.Make(machineConfig{
		boot: "spin",
		programs: map[string]programDef{
			"spin": {entry: 0x08048094, body: func(u *UserContext) int32 {
				n := u.PID()
				for {
					u.StoreByte(ProgVirtBase+0x1000, byte(n))
					count[n].Add(1)
				}
			}},
		},
	})

	t.waitFor("all spinners make progress", func() bool {
		for i := range count {
			if count[i].Load() < 1000 {
				return false
			}
		}
		return true
	})

	// Compute-bound neighbours share the processor through the timer alone; the coarse bound
	// just catches a wedged scheduler.
	for i := range count {
		if count[i].Load() == 0 {
			t.Errorf("spinner %d made no progress", i)
		}
	}
}

func TestShellRoundTrip(tt *testing.T) {
	t := NewTestHarness(tt)

	contents := "the quick brown fox\njumps over the lazy dog\n"

	k := t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() != 0 {
					return idleBody(u)
				}

				buf := make([]byte, 128)
				n := u.Read(0, buf)
				name := strings.TrimSuffix(string(buf[:n]), "\n")

				fd := u.Open(name)
				if fd < 0 {
					u.WriteString(1, "open failed\n")
					return idleBody(u)
				}

				for {
					n := u.Read(fd, buf)
					if n <= 0 {
						break
					}
					u.Write(1, buf[:n])
				}

				if u.Close(fd) != 0 {
					u.WriteString(1, "close failed\n")
				}

				return idleBody(u)
			}},
		},
		files: map[string][]byte{
			"frame0.txt": []byte(contents),
		},
	})

	if err := k.Type("frame0.txt\n"); err != nil {
		t.Fatal(err)
	}

	t.waitFor("file contents on the display", func() bool {
		return screenContains(k, "quick brown fox") && screenContains(k, "lazy dog")
	})

	if screenContains(k, "open failed") || screenContains(k, "close failed") {
		t.Error("open/close failed during round trip")
	}
}

func TestOutputRoutedToOwnTerminal(tt *testing.T) {
	t := NewTestHarness(tt)

	k := t.Make(machineConfig{
		boot: "talk",
		programs: map[string]programDef{
			"talk": {entry: 0x08048094, body: func(u *UserContext) int32 {
				switch u.PID() {
				case 1:
					u.WriteString(1, "from-one")
				case 2:
					u.WriteString(1, "from-two")
				}

				return idleBody(u)
			}},
		},
	})

	// Background terminals write into their shadow frames, never the display.
	t.waitFor("terminal 1 shadow output", func() bool {
		rows := k.Console().Text(console.FrameTag(1))
		return strings.Contains(rows[0], "from-one")
	})

	t.waitFor("terminal 2 shadow output", func() bool {
		rows := k.Console().Text(console.FrameTag(2))
		return strings.Contains(rows[0], "from-two")
	})

	if screenContains(k, "from-one") || screenContains(k, "from-two") {
		t.Error("background output leaked onto the display")
	}
}
