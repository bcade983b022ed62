package kernel

// syscall_test.go exercises the gate from inside user programs: descriptor validation, the tick
// source, getargs, vidmap, and exception handling.

import (
	"strings"
	"testing"

	"github.com/psyche-os/psyche/internal/console"
)

// runProbe boots a machine whose terminal-0 root runs body; the other roots idle. The body's
// observations arrive on the returned channel.
func runProbe(t *testHarness, files map[string][]byte, body func(u *UserContext, report chan<- string)) (*Kernel, <-chan string) {
	t.Helper()

	report := make(chan string, 64)

	k := t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() != 0 {
					return idleBody(u)
				}

				body(u, report)
				close(report)

				return idleBody(u)
			}},
		},
		files: files,
	})

	return k, report
}

func expect(t *testHarness, report <-chan string) {
	t.Helper()

	for msg := range report {
		if strings.HasPrefix(msg, "fail:") {
			t.Error(msg)
		}
	}
}

func check(report chan<- string, what string, ok bool) {
	if ok {
		report <- "ok: " + what
	} else {
		report <- "fail: " + what
	}
}

func TestDescriptorValidation(tt *testing.T) {
	t := NewTestHarness(tt)

	_, report := runProbe(t, map[string][]byte{"data": []byte("abc")},
		func(u *UserContext, report chan<- string) {
			buf := make([]byte, 16)

			// Reads from stdout and writes to stdin fail.
			check(report, "read(stdout)", u.Read(1, buf) == -1)
			check(report, "write(stdin)", u.Write(0, []byte("x")) == -1)

			// Stdin and stdout are not closable.
			check(report, "close(0)", u.Close(0) == -1)
			check(report, "close(1)", u.Close(1) == -1)

			// Out-of-range and unbound descriptors fail.
			check(report, "read(-1)", u.Read(-1, buf) == -1)
			check(report, "read(7)", u.Read(7, buf) == -1)
			check(report, "close(9)", u.Close(9) == -1)

			// Buffers outside the program window fail without faulting.
			check(report, "read outside window",
				u.Syscall(SysRead, 0, 0x1000, 16) == -1)
			check(report, "write outside window",
				u.Syscall(SysWrite, 1, uint32(VideoVirtAddr), 16) == -1)

			// Writes to a data file fail; reads work and advance the position.
			fd := u.Open("data")
			check(report, "open data", fd >= 2)
			check(report, "write(file)", u.Write(fd, []byte("x")) == -1)
			check(report, "read 2", u.Read(fd, buf[:2]) == 2)
			n := u.Read(fd, buf)
			check(report, "read rest", n == 1 && buf[0] == 'c')
			check(report, "read at EOF", u.Read(fd, buf) == 0)
			check(report, "close", u.Close(fd) == 0)
		})

	expect(t, report)
}

func TestDescriptorExhaustion(tt *testing.T) {
	t := NewTestHarness(tt)

	_, report := runProbe(t, map[string][]byte{"data": []byte("abc")},
		func(u *UserContext, report chan<- string) {
			// Six descriptors beyond stdin/stdout; the seventh open fails.
			var fds []int32
			for i := 2; i < MaxFDs; i++ {
				fd := u.Open("data")
				check(report, "open", fd == int32(i))
				fds = append(fds, fd)
			}

			check(report, "open with full table", u.Open("data") == -1)

			// Closing one frees the lowest slot for reuse.
			check(report, "close 4", u.Close(4) == 0)
			check(report, "reopen lands on 4", u.Open("data") == 4)

			for _, fd := range fds {
				u.Close(fd)
			}
		})

	expect(t, report)
}

func TestDirectoryRead(tt *testing.T) {
	t := NewTestHarness(tt)

	_, report := runProbe(t, map[string][]byte{"alpha": []byte("a"), "beta": []byte("b")},
		func(u *UserContext, report chan<- string) {
			fd := u.Open(".")
			check(report, "open directory", fd >= 2)

			var names []string
			buf := make([]byte, 32)

			for {
				n := u.Read(fd, buf)
				if n <= 0 {
					break
				}

				name := string(buf[:n])
				if i := strings.IndexByte(name, 0); i >= 0 {
					name = name[:i]
				}

				names = append(names, name)
			}

			got := strings.Join(names, " ")
			check(report, "listing has every entry: "+got,
				got == ". rtc shell alpha beta")

			check(report, "directory write", u.Write(fd, []byte("x")) == -1)

			u.Close(fd)
		})

	expect(t, report)
}

func TestTickSource(tt *testing.T) {
	t := NewTestHarness(tt)

	_, report := runProbe(t, nil,
		func(u *UserContext, report chan<- string) {
			fd := u.Open("rtc")
			check(report, "open rtc", fd >= 2)

			// Rates must be powers of two in [2, 1024].
			check(report, "rate 1 rejected", u.Write(fd, leBytes(1)) == -1)
			check(report, "rate 3 rejected", u.Write(fd, leBytes(3)) == -1)
			check(report, "rate 2048 rejected", u.Write(fd, leBytes(2048)) == -1)
			check(report, "rate 1024 accepted", u.Write(fd, leBytes(1024)) == 0)

			// At 1024 Hz, 1024 reads take about one virtual second.
			start := u.k.Cycles()
			reads := 0
			for i := 0; i < 1024; i++ {
				if u.Read(fd, nil) == 0 {
					reads++
				}
			}
			check(report, "every read returns 0", reads == 1024)
			elapsed := u.k.Cycles() - start

			check(report, "1024 reads near one second",
				elapsed > CyclesPerSecond*3/4 && elapsed < CyclesPerSecond*2)

			// At 2 Hz, two reads take about one virtual second. The first read after the rate
			// change still waits out the old countdown, so it is not measured.
			check(report, "rate 2 accepted", u.Write(fd, leBytes(2)) == 0)
			u.Read(fd, nil)

			start = u.k.Cycles()
			u.Read(fd, nil)
			u.Read(fd, nil)
			elapsed = u.k.Cycles() - start

			check(report, "two reads near one second",
				elapsed > CyclesPerSecond*3/4 && elapsed < CyclesPerSecond*2)

			u.Close(fd)

			// Reading a closed-out tick state fails.
			fd = u.Open("rtc")
			u.Close(fd)
			check(report, "read after close", u.Read(fd, nil) == -1)
		})

	expect(t, report)
}

func TestGetArgs(tt *testing.T) {
	t := NewTestHarness(tt)

	rets := make(chan string, 4)

	t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() != 0 {
					return idleBody(u)
				}

				// Extra spaces between name and arguments are collapsed away.
				if u.Execute("child   one two") != 0 {
					rets <- "fail: child status"
				}

				// The root was spawned with no arguments; an empty string still fits.
				buf := make([]byte, 8)
				if u.GetArgs(buf) != 0 || buf[0] != 0 {
					rets <- "fail: root getargs"
				}

				rets <- "done"
				return idleBody(u)
			}},
			"child": {entry: 0x080480c0, body: func(u *UserContext) int32 {
				buf := make([]byte, 64)
				if u.GetArgs(buf) != 0 {
					rets <- "fail: child getargs"
					u.Halt(1)
				}

				args := string(buf[:strings.IndexByte(string(buf), 0)])
				if args != "one two" {
					rets <- "fail: args were " + args
					u.Halt(1)
				}

				// A buffer smaller than the arguments fails.
				if u.GetArgs(make([]byte, 3)) != -1 {
					rets <- "fail: short getargs succeeded"
					u.Halt(1)
				}

				u.Halt(0)
				return 0
			}},
		},
	})

	for msg := <-rets; msg != "done"; msg = <-rets {
		t.Error(msg)
	}
}

func leBytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func TestVidmap(tt *testing.T) {
	t := NewTestHarness(tt)

	k, report := runProbe(t, nil,
		func(u *UserContext, report chan<- string) {
			va, ret := u.Vidmap()
			check(report, "vidmap returns the console page", ret == 0 && va == VideoVirtAddr)

			// Stores through the mapping land on this process's frame: the display, since
			// terminal 0 is active.
			u.Store16(va, uint16('#')|0x0F00)
			cell := u.Load16(va)
			check(report, "cell readback", byte(cell) == '#')

			// A null output pointer fails.
			check(report, "vidmap(0)", u.Syscall(SysVidmap, 0, 0, 0) == -1)
		})

	expect(t, report)

	t.waitFor("cell visible on display", func() bool {
		rows := k.Console().Text(console.DisplayFrame)
		return rows[0][0] == '#'
	})
}

func TestExceptionTermination(tt *testing.T) {
	t := NewTestHarness(tt)

	rets := make(chan int32, 1)

	k := t.Make(machineConfig{
		programs: map[string]programDef{
			"shell": {entry: 0x08048094, body: func(u *UserContext) int32 {
				if u.PID() != 0 {
					return idleBody(u)
				}

				rets <- u.Execute("wild")
				return idleBody(u)
			}},
			"wild": {entry: 0x080480c0, body: func(u *UserContext) int32 {
				u.StoreByte(0x1000, 1) // Unmapped: kernel-only low memory.
				return 0
			}},
		},
	})

	if got := <-rets; got != ExceptionStatus {
		t.Errorf("execute of faulting child: want %d, got %d", ExceptionStatus, got)
	}

	// The fault is reported on the offending terminal.
	t.waitFor("exception dump on terminal 0", func() bool {
		return screenContains(k, "exception:")
	})

	// The child's slot is free again.
	procs := k.Processes()
	for slot := console.NumTerminals; slot < MaxProcs; slot++ {
		if procs[slot].InUse {
			t.Errorf("slot %d still in use after exception", slot)
		}
	}
}
