package tty

// keys.go turns the host terminal's byte stream into the scancode stream the machine's keyboard
// expects: printable characters become make/break pairs (with shift wrapped around them when
// needed), and the function keys F1 to F3 become the terminal-switch chords.

import (
	"github.com/psyche-os/psyche/internal/console"
)

// decoder is the byte-stream state machine. Escape sequences arrive one byte at a time, so the
// pending sequence is carried between calls.
type decoder struct {
	esc []byte
}

// Decode consumes one input byte and returns the scancodes it produces, if any. quit is set for
// the interrupt character (Ctrl+C), which ends the session rather than reaching the machine.
func (d *decoder) Decode(b byte) (codes []byte, quit bool) {
	if len(d.esc) > 0 {
		return d.escByte(b), false
	}

	switch b {
	case 0x03: // Ctrl+C
		return nil, true
	case 0x1B:
		d.esc = append(d.esc, b)
		return nil, false
	case '\r', '\n':
		return makeBreak(0x1C), false
	case 0x7F, '\b':
		return makeBreak(0x0E), false
	case '\t':
		return makeBreak(0x0F), false
	case 0x0C: // Ctrl+L
		return chord(console.ScanCtrl, 0x26), false
	}

	if codes, ok := console.ScancodesFor(b); ok {
		return codes, false
	}

	return nil, false
}

// escByte extends a pending escape sequence, emitting scancodes when it completes.
func (d *decoder) escByte(b byte) []byte {
	d.esc = append(d.esc, b)

	if len(d.esc) == 2 {
		switch b {
		case 'O', '[':
			return nil // More to come.
		default:
			// A bare ESC followed by an ordinary key; drop both.
			d.esc = nil
			return nil
		}
	}

	// SS3-style function keys: ESC O P, Q, R.
	if d.esc[1] == 'O' {
		seq := d.esc
		d.esc = nil

		if n := int(seq[2] - 'P'); n >= 0 && n < console.NumTerminals {
			return console.SwitchScancodes(n)
		}

		return nil
	}

	// CSI sequences end with a byte in 0x40..0x7E.
	if b < 0x40 || b > 0x7E {
		if len(d.esc) > 8 {
			d.esc = nil
		}

		return nil
	}

	seq := string(d.esc)
	d.esc = nil

	switch seq {
	case "\x1b[11~", "\x1b[1;3P", "\x1b[P":
		return console.SwitchScancodes(0)
	case "\x1b[12~", "\x1b[1;3Q", "\x1b[Q":
		return console.SwitchScancodes(1)
	case "\x1b[13~", "\x1b[1;3R", "\x1b[R":
		return console.SwitchScancodes(2)
	default:
		return nil
	}
}

func makeBreak(code byte) []byte {
	return []byte{code, code | 0x80}
}

// chord wraps a key press in a modifier press.
func chord(modifier, code byte) []byte {
	return []byte{modifier, code, code | 0x80, modifier | 0x80}
}
