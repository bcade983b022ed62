// Package monitor is the interactive machine monitor: a command line for inspecting a running
// machine, injecting keys, and poking at the console, without taking the host terminal over the
// way the full-screen front-end does.
package monitor

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/psyche-os/psyche/internal/console"
	"github.com/psyche-os/psyche/internal/kernel"
	"github.com/psyche-os/psyche/internal/log"
)

// Monitor drives one machine from a command loop.
type Monitor struct {
	k   *kernel.Kernel
	out io.Writer
	log *log.Logger
}

// New creates a monitor for a running machine.
func New(k *kernel.Kernel, out io.Writer, logger *log.Logger) *Monitor {
	return &Monitor{k: k, out: out, log: logger}
}

// command names, sorted for completion.
var commands = []string{
	"help", "irq", "keys", "ls", "ps", "quit", "screen", "switch", "ticks", "type",
}

// Run reads and executes monitor commands until quit or end of input.
func (m *Monitor) Run() error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, prefix) {
				out = append(out, cmd)
			}
		}

		return out
	})

	for {
		input, err := line.Prompt("monitor> ")

		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		line.AppendHistory(input)

		quit, err := m.execute(input)
		if err != nil {
			fmt.Fprintf(m.out, "error: %s\n", err)
		}

		if quit {
			return nil
		}
	}
}

// execute runs one command line. It returns true when the session should end.
func (m *Monitor) execute(input string) (bool, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false, nil
	}

	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "q":
		m.k.Shutdown()
		return true, nil

	case "help", "?":
		m.help()

	case "ps":
		m.ps()

	case "ls":
		m.ls()

	case "screen":
		return false, m.screen(args)

	case "switch":
		return false, m.switchTerminal(args)

	case "type":
		return false, m.typeKeys(input)

	case "keys":
		return false, m.rawKeys(args)

	case "irq":
		m.irq()

	case "ticks":
		fmt.Fprintf(m.out, "%d cycles (%.2fs machine time)\n",
			m.k.Cycles(), float64(m.k.Cycles())/float64(kernel.CyclesPerSecond))

	default:
		return false, fmt.Errorf("unknown command %q; try help", cmd)
	}

	return false, nil
}

func (m *Monitor) help() {
	fmt.Fprint(m.out, `commands:
  ps              process slots
  ls              files on the mounted file system
  screen [n]      dump the display, or terminal n's shadow frame
  switch n        make terminal n active (as Alt+Fn would)
  type TEXT...    type a line of input, with a newline appended
  keys HEX...     inject raw scancodes
  irq             interrupt delivery counts
  ticks           machine time
  quit            shut the machine down and leave
`)
}

func (m *Monitor) ps() {
	fmt.Fprintf(m.out, "%-4s %-5s %-9s %-4s %s\n", "SLOT", "PID", "STATUS", "TTY", "COMMAND")

	for _, p := range m.k.Processes() {
		if !p.InUse {
			fmt.Fprintf(m.out, "%-4d %s\n", p.Slot, "-")
			continue
		}

		command := p.Name
		if p.Args != "" {
			command += " " + p.Args
		}

		fmt.Fprintf(m.out, "%-4d %-5d %-9s %-4d %s\n", p.Slot, p.PID, p.Status, p.Terminal, command)
	}
}

func (m *Monitor) ls() {
	fsys := m.k.FileSystem()

	names := make([]string, 0, fsys.NumDentries())

	for i := 0; i < fsys.NumDentries(); i++ {
		d, err := fsys.DentryByIndex(uint32(i))
		if err != nil {
			break
		}

		switch d.Type {
		case 0:
			names = append(names, d.Name+" (tick device)")
		case 1:
			names = append(names, d.Name+"/")
		default:
			size, _ := fsys.FileSize(d.Inode)
			names = append(names, fmt.Sprintf("%s (%d bytes)", d.Name, size))
		}
	}

	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintln(m.out, name)
	}
}

func (m *Monitor) screen(args []string) error {
	tag := console.DisplayFrame

	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n >= console.NumTerminals {
			return fmt.Errorf("screen: bad terminal %q", args[0])
		}

		tag = console.FrameTag(n)
	}

	fmt.Fprintln(m.out, "+"+strings.Repeat("-", console.Cols)+"+")

	for _, row := range m.k.Console().Text(tag) {
		fmt.Fprintln(m.out, "|"+row+"|")
	}

	fmt.Fprintln(m.out, "+"+strings.Repeat("-", console.Cols)+"+")

	return nil
}

func (m *Monitor) switchTerminal(args []string) error {
	if len(args) != 1 {
		return errors.New("switch: which terminal?")
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= console.NumTerminals {
		return fmt.Errorf("switch: bad terminal %q", args[0])
	}

	m.k.PressKey(console.SwitchScancodes(n)...)

	return nil
}

func (m *Monitor) typeKeys(input string) error {
	_, rest, found := strings.Cut(input, " ")
	if !found {
		return errors.New("type: what?")
	}

	return m.k.Type(rest + "\n")
}

func (m *Monitor) rawKeys(args []string) error {
	if len(args) == 0 {
		return errors.New("keys: which scancodes?")
	}

	codes := make([]byte, 0, len(args))

	for _, arg := range args {
		v, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 8)
		if err != nil {
			return fmt.Errorf("keys: bad scancode %q", arg)
		}

		codes = append(codes, byte(v))
	}

	m.k.PressKey(codes...)

	return nil
}

func (m *Monitor) irq() {
	for _, line := range []struct {
		name string
		irq  kernel.IRQ
	}{
		{"timer", kernel.IRQPIT},
		{"keyboard", kernel.IRQKeyboard},
		{"tick source", kernel.IRQTick},
	} {
		fmt.Fprintf(m.out, "%-12s %d delivered\n", line.name, m.k.Acks(line.irq))
	}
}
