// Package console multiplexes three logical terminals onto one text display and one keyboard.
//
// Each terminal owns a cooked input buffer, an output frame and a cursor. Exactly one terminal is
// active: its frame is the display itself, while the other two write to shadow frames. Switching
// terminals exchanges the display contents with the shadow frames.
package console

import (
	"fmt"
	"sync"

	"github.com/psyche-os/psyche/internal/log"
)

// Display geometry and the default cell attribute (white on black).
const (
	Cols = 80
	Rows = 25

	// NumTerminals is the number of logical terminals sharing the display.
	NumTerminals = 3

	// InputCap bounds each terminal's cooked input buffer.
	InputCap = 128

	cellAttr = uint16(0x0F00)
	blank    = uint16(' ') | cellAttr

	tabStop = 4
)

// A Frame is one screenful of 16-bit character cells: low byte code point, high byte attribute.
type Frame [Rows * Cols]uint16

// CellIndex maps an (x, y) position to a frame index.
func CellIndex(x, y int) int { return y*Cols + x }

// Clear fills the frame with blank cells.
func (f *Frame) Clear() {
	for i := range f {
		f[i] = blank
	}
}

func (f *Frame) scroll() {
	copy(f[:], f[Cols:])

	for x := 0; x < Cols; x++ {
		f[CellIndex(x, Rows-1)] = blank
	}
}

// Terminal is one logical terminal: a cooked input buffer, an output frame, and a cursor.
type Terminal struct {
	input Ring
	frame Frame // Shadow frame; ignored while this terminal is active.
	curX  int
	curY  int
	lines int // Completed input lines not yet consumed by a read.
}

// Multiplexor owns the terminals, the display, and the keyboard state. All mutation happens under
// one lock so a renderer can take consistent snapshots while the kernel drives the terminals.
type Multiplexor struct {
	mut sync.Mutex

	term    [NumTerminals]Terminal
	display Frame // The physical text frame; backs the active terminal.
	active  int

	pressed [NumKeys]bool
	caps    bool

	switched func(prev, next int)

	log *log.Logger
}

// New creates a multiplexor with cleared terminals and terminal 0 active.
func New() *Multiplexor {
	m := &Multiplexor{log: log.DefaultLogger()}

	for i := range m.term {
		m.term[i].input = NewRing(InputCap)
		m.term[i].frame.Clear()
	}

	m.display.Clear()

	return m
}

// WithLogger replaces the multiplexor's logger.
func (m *Multiplexor) WithLogger(logger *log.Logger) { m.log = logger }

// OnSwitch registers a handler called after the active terminal changes, with the previous and new
// terminal numbers. The handler runs with the multiplexor locked and must not call back in.
func (m *Multiplexor) OnSwitch(fn func(prev, next int)) { m.switched = fn }

// Active returns the active terminal number.
func (m *Multiplexor) Active() int {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.active
}

// frameOf returns the frame terminal t draws into: the display if t is active, else its shadow.
func (m *Multiplexor) frameOf(t int) *Frame {
	if t == m.active {
		return &m.display
	}

	return &m.term[t].frame
}

// putc outputs one character on terminal t, scrolling and wrapping as needed.
func (m *Multiplexor) putc(t int, ch byte) {
	term := &m.term[t]
	frame := m.frameOf(t)

	switch ch {
	case '\b':
		if term.curX == 0 && term.curY == 0 {
			frame[0] = blank
			return
		}

		if term.curX == 0 {
			term.curY--
			term.curX = Cols
		}
		term.curX--
		frame[CellIndex(term.curX, term.curY)] = blank
	case '\n':
		term.curX = 0
		term.curY++
		if term.curY >= Rows {
			frame.scroll()
			term.curY = Rows - 1
		}
	case '\t':
		// Tabs are expanded by the line discipline; raw output drops them.
	default:
		frame[CellIndex(term.curX, term.curY)] = uint16(ch) | cellAttr
		if term.curX++; term.curX >= Cols {
			term.curX = 0
			term.curY++
			if term.curY >= Rows {
				frame.scroll()
				term.curY = Rows - 1
			}
		}
	}
}

// clear blanks terminal t and homes its cursor.
func (m *Multiplexor) clear(t int) {
	m.frameOf(t).Clear()
	m.term[t].curX = 0
	m.term[t].curY = 0
}

// Clear blanks terminal t and homes its cursor without touching its input buffer.
func (m *Multiplexor) Clear(t int) {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.clear(t)
}

// Write emits data on terminal t and returns the byte count.
func (m *Multiplexor) Write(t int, data []byte) int {
	m.mut.Lock()
	defer m.mut.Unlock()

	for _, ch := range data {
		m.putc(t, ch)
	}

	return len(data)
}

// LinesReady returns the number of completed, unconsumed input lines on terminal t.
func (m *Multiplexor) LinesReady(t int) int {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.term[t].lines
}

// ReadLine consumes up to max bytes from terminal t's input, through at most the first newline.
// A completed line must be ready; callers block on LinesReady first.
func (m *Multiplexor) ReadLine(t int, max int) []byte {
	m.mut.Lock()
	defer m.mut.Unlock()

	term := &m.term[t]

	end := term.input.Find('\n')
	if end < 0 {
		return nil
	}

	if avail := end + 1; max > avail {
		max = avail
	}

	out := term.input.Get(max)
	term.lines--

	return out
}

// Switch makes terminal next the active one: the display is copied out to the previously active
// terminal's shadow and the new terminal's shadow is copied in.
func (m *Multiplexor) Switch(next int) {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.switchTo(next)
}

func (m *Multiplexor) switchTo(next int) {
	if next == m.active || next < 0 || next >= NumTerminals {
		return
	}

	prev := m.active

	m.term[prev].frame = m.display
	m.active = next

	if m.switched != nil {
		m.switched(prev, next)
	}

	m.display = m.term[next].frame

	m.log.Debug("console: switched terminal", "from", prev, "to", next)
}

// Snapshot copies the display frame and the active terminal's cursor for a renderer.
func (m *Multiplexor) Snapshot() (Frame, int, int) {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.display, m.term[m.active].curX, m.term[m.active].curY
}

// Cursor returns terminal t's cursor position.
func (m *Multiplexor) Cursor(t int) (int, int) {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.term[t].curX, m.term[t].curY
}

func (m *Multiplexor) String() string {
	m.mut.Lock()
	defer m.mut.Unlock()

	return fmt.Sprintf("Console(active:%d)", m.active)
}
