package console

// vram.go exposes cell-level access to the display and shadow frames, for processes that map a
// console frame into their own address space.

// FrameTag names one of the multiplexor's frames: the live display, or a terminal's shadow.
type FrameTag int

// DisplayFrame tags the physical display; non-negative tags name a terminal's shadow frame.
const DisplayFrame FrameTag = -1

func (m *Multiplexor) cellFrame(tag FrameTag) *Frame {
	if tag == DisplayFrame {
		return &m.display
	}

	return &m.term[tag].frame
}

// PokeCell stores one character cell in the tagged frame.
func (m *Multiplexor) PokeCell(tag FrameTag, index int, cell uint16) {
	m.mut.Lock()
	defer m.mut.Unlock()

	if index < 0 || index >= Rows*Cols {
		return
	}

	m.cellFrame(tag)[index] = cell
}

// PeekCell loads one character cell from the tagged frame.
func (m *Multiplexor) PeekCell(tag FrameTag, index int) uint16 {
	m.mut.Lock()
	defer m.mut.Unlock()

	if index < 0 || index >= Rows*Cols {
		return 0
	}

	return m.cellFrame(tag)[index]
}

// Text renders a frame's rows as byte strings, for the monitor and for tests.
func (m *Multiplexor) Text(tag FrameTag) []string {
	m.mut.Lock()
	defer m.mut.Unlock()

	frame := m.cellFrame(tag)
	rows := make([]string, Rows)
	line := make([]byte, Cols)

	for y := 0; y < Rows; y++ {
		for x := 0; x < Cols; x++ {
			line[x] = byte(frame[CellIndex(x, y)])
		}
		rows[y] = string(line)
	}

	return rows
}
