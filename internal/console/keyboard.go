package console

// keyboard.go is the keyboard service routine: it tracks make/break state, derives modifiers,
// translates scancodes, and feeds the active terminal's line discipline.

// HandleScancode consumes one set-1 scancode from the keyboard. Break codes update the pressed-key
// vector; make codes are translated through the keymap and cooked into the active terminal.
func (m *Multiplexor) HandleScancode(code byte) {
	m.mut.Lock()
	defer m.mut.Unlock()

	if code == ScanEscapePrefix {
		return
	}

	if code&scanBreak != 0 {
		m.pressed[code&scanMask] = false
		return
	}

	m.pressed[code&scanMask] = true

	ctrl := m.pressed[ScanCtrl]
	alt := m.pressed[ScanAlt]
	shift := m.pressed[ScanLeftShift] || m.pressed[ScanRightShift]

	plane := 0
	if shift {
		plane |= 1
	}
	if m.caps {
		plane |= 2
	}

	ch := keymap[plane][code&scanMask]

	if code == ScanCapsLock {
		m.caps = !m.caps
	}

	if alt && code >= ScanF1 && code < ScanF1+NumTerminals {
		m.switchTo(int(code - ScanF1))
		return
	}

	if ctrl && (ch == 'l' || ch == 'L') {
		m.clearAndReplay()
		return
	}

	// Other control and alt combinations are not printable.
	if ctrl || alt {
		return
	}

	if ch != 0 {
		m.cook(ch)
	}
}

// clearAndReplay clears the active terminal's visible area and re-echoes the buffered, unconsumed
// input at the top left. The input buffer itself is unchanged.
func (m *Multiplexor) clearAndReplay() {
	t := m.active
	held := m.term[t].input.Peek(m.term[t].input.Len())

	m.clear(t)

	for _, ch := range held {
		m.putc(t, ch)
	}
}

// cook applies the line discipline to one translated key on the active terminal: cooked editing
// for backspace, newline completion, tab expansion to the next tab stop, and echo.
func (m *Multiplexor) cook(ch byte) {
	t := m.active
	term := &m.term[t]

	switch ch {
	case '\b':
		if term.input.Len() == 0 {
			return
		}

		last, _ := term.input.PeekTail()
		if last == '\n' {
			return
		}

		term.input.PopTail()

		if last == '\t' {
			n := term.curX % tabStop
			if n == 0 {
				n = tabStop
			}
			for i := 0; i < n; i++ {
				m.putc(t, '\b')
			}
		} else {
			m.putc(t, '\b')
		}

	case '\n':
		if term.input.Len() >= term.input.Cap() {
			return
		}

		term.input.PutByte('\n')
		m.putc(t, '\n')
		term.lines++

	case '\t':
		// Leave room for the newline that completes the line.
		if term.input.Len() >= term.input.Cap()-1 {
			return
		}

		term.input.PutByte('\t')

		n := tabStop - term.curX%tabStop
		for i := 0; i < n; i++ {
			m.putc(t, ' ')
		}

	default:
		if term.input.Len() >= term.input.Cap()-1 {
			return
		}

		term.input.PutByte(ch)
		m.putc(t, ch)
	}
}

// Pressed reports whether the key with the given scancode is held. It exists for tests and the
// machine monitor.
func (m *Multiplexor) Pressed(code byte) bool {
	m.mut.Lock()
	defer m.mut.Unlock()

	return m.pressed[code&scanMask]
}
