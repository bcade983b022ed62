// Package tty hosts the machine's console on a Unix terminal. Keystrokes become scancodes for
// the simulated keyboard; the 80x25 cell display is repainted onto the terminal with ANSI
// control sequences. F1 to F3 switch the machine's logical terminals; Ctrl+C ends the session.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/psyche-os/psyche/internal/console"
	"github.com/psyche-os/psyche/internal/kernel"
)

// ErrNoTTY is returned if standard input is not a terminal.
var ErrNoTTY = errors.New("console: not a TTY")

// Console owns the host terminal for the duration of a machine session.
type Console struct {
	in    *os.File
	out   *os.File
	fd    int
	state *term.State

	last console.Frame
	drew bool
}

// NewConsole puts the input stream into raw mode. If it is not a terminal, ErrNoTTY is returned.
// Callers must call Restore to put the terminal back.
func NewConsole(sin, sout *os.File) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	cons := Console{
		in:    sin,
		out:   sout,
		fd:    fd,
		state: saved,
	}

	if err := cons.setTerminalParams(1, 0); err != nil {
		cons.Restore()
		return nil, err
	}

	return &cons, nil
}

// Restore returns the terminal to its initial state and cancels in-progress reads.
func (c *Console) Restore() {
	_ = os.Stdin.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)

	fmt.Fprint(c.out, "\x1b[?25h\x1b[0m\r\n")
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = os.Stdin.SetReadDeadline(time.Time{})

	return nil
}

// Run attaches the console to a machine until the context is cancelled or the user interrupts.
func (c *Console) Run(ctx context.Context, k *kernel.Kernel) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	go c.readKeys(ctx, k, cancel)

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	fmt.Fprint(c.out, "\x1b[2J\x1b[?25l")

	for {
		select {
		case <-ctx.Done():
			if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		case <-ticker.C:
			c.paint(k)
		}
	}
}

// readKeys decodes terminal input into scancodes until the context ends.
func (c *Console) readKeys(ctx context.Context, k *kernel.Kernel, cancel context.CancelCauseFunc) {
	buf := bufio.NewReader(c.in)
	dec := decoder{}

	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			cancel(err)
			return
		}

		codes, quit := dec.Decode(b)
		if quit {
			cancel(context.Canceled)
			return
		}

		if len(codes) > 0 {
			k.PressKey(codes...)
		}
	}
}

// paint redraws the display frame if it changed since the last repaint.
func (c *Console) paint(k *kernel.Kernel) {
	frame, curX, curY := k.Console().Snapshot()

	if c.drew && frame == c.last {
		return
	}

	c.last = frame
	c.drew = true

	var b strings.Builder

	b.WriteString("\x1b[H")

	for y := 0; y < console.Rows; y++ {
		for x := 0; x < console.Cols; x++ {
			ch := byte(frame[console.CellIndex(x, y)])
			if ch < 0x20 || ch > 0x7E {
				ch = ' '
			}

			b.WriteByte(ch)
		}

		b.WriteString("\x1b[E")
	}

	// Park the hardware cursor where the machine put it.
	fmt.Fprintf(&b, "\x1b[%d;%dH\x1b[?25h", curY+1, curX+1)

	_, _ = c.out.WriteString(b.String())
}
