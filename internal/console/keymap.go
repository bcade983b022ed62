package console

// keymap.go translates set-1 scancodes to characters. The table has four planes indexed by
// (shift | capslock<<1); only make codes below 0x60 are mapped.

// Scancodes with meaning beyond the translation table.
const (
	ScanEscapePrefix = 0xE1 // multi-byte sequence prefix; discarded
	ScanCtrl         = 0x1D
	ScanLeftShift    = 0x2A
	ScanRightShift   = 0x36
	ScanAlt          = 0x38
	ScanCapsLock     = 0x3A
	ScanF1           = 0x3B

	scanBreak = 0x80 // set on key release
	scanMask  = 0x7F

	// NumKeys is the size of the pressed-key vector.
	NumKeys = 128
)

// ScancodesFor returns the make/break scancode sequence that produces the given character,
// wrapping it in shift presses when the shifted plane is needed.
func ScancodesFor(ch byte) ([]byte, bool) {
	for code := 1; code < NumKeys; code++ {
		if keymap[0][code] == ch {
			return []byte{byte(code), byte(code) | scanBreak}, true
		}
	}

	for code := 1; code < NumKeys; code++ {
		if keymap[1][code] == ch {
			return []byte{
				ScanLeftShift,
				byte(code), byte(code) | scanBreak,
				ScanLeftShift | scanBreak,
			}, true
		}
	}

	return nil, false
}

// SwitchScancodes returns the Alt+F sequence that switches to terminal n.
func SwitchScancodes(n int) []byte {
	if n < 0 || n >= NumTerminals {
		return nil
	}

	fn := ScanF1 + byte(n)

	return []byte{ScanAlt, fn, fn | scanBreak, ScanAlt | scanBreak}
}

var keymap = [4][NumKeys]byte{
	// Plane 0: no modifiers.
	{
		0x01: 27,
		0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
		0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0',
		0x0C: '-', 0x0D: '=', 0x0E: '\b', 0x0F: '\t',
		0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
		0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
		0x1A: '[', 0x1B: ']', 0x1C: '\n',
		0x1E: 'a', 0x1F: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
		0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',
		0x27: ';', 0x28: '\'', 0x29: '`', 0x2B: '\\',
		0x2C: 'z', 0x2D: 'x', 0x2E: 'c', 0x2F: 'v', 0x30: 'b',
		0x31: 'n', 0x32: 'm', 0x33: ',', 0x34: '.', 0x35: '/',
		0x37: '*', 0x39: ' ', 0x4A: '-',
	},
	// Plane 1: shift.
	{
		0x01: 27,
		0x02: '!', 0x03: '@', 0x04: '#', 0x05: '$', 0x06: '%',
		0x07: '^', 0x08: '&', 0x09: '*', 0x0A: '(', 0x0B: ')',
		0x0C: '_', 0x0D: '+', 0x0E: '\b', 0x0F: '\t',
		0x10: 'Q', 0x11: 'W', 0x12: 'E', 0x13: 'R', 0x14: 'T',
		0x15: 'Y', 0x16: 'U', 0x17: 'I', 0x18: 'O', 0x19: 'P',
		0x1A: '{', 0x1B: '}', 0x1C: '\n',
		0x1E: 'A', 0x1F: 'S', 0x20: 'D', 0x21: 'F', 0x22: 'G',
		0x23: 'H', 0x24: 'J', 0x25: 'K', 0x26: 'L',
		0x27: ':', 0x28: '"', 0x29: '~', 0x2B: '|',
		0x2C: 'Z', 0x2D: 'X', 0x2E: 'C', 0x2F: 'V', 0x30: 'B',
		0x31: 'N', 0x32: 'M', 0x33: '<', 0x34: '>', 0x35: '?',
		0x37: '*', 0x39: ' ', 0x4A: '-',
	},
	// Plane 2: caps lock.
	{
		0x01: 27,
		0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
		0x07: '6', 0x08: '7', 0x09: '8', 0x0A: '9', 0x0B: '0',
		0x0C: '-', 0x0D: '=', 0x0E: '\b', 0x0F: '\t',
		0x10: 'Q', 0x11: 'W', 0x12: 'E', 0x13: 'R', 0x14: 'T',
		0x15: 'Y', 0x16: 'U', 0x17: 'I', 0x18: 'O', 0x19: 'P',
		0x1A: '[', 0x1B: ']', 0x1C: '\n',
		0x1E: 'A', 0x1F: 'S', 0x20: 'D', 0x21: 'F', 0x22: 'G',
		0x23: 'H', 0x24: 'J', 0x25: 'K', 0x26: 'L',
		0x27: ';', 0x28: '\'', 0x29: '`', 0x2B: '\\',
		0x2C: 'Z', 0x2D: 'X', 0x2E: 'C', 0x2F: 'V', 0x30: 'B',
		0x31: 'N', 0x32: 'M', 0x33: ',', 0x34: '.', 0x35: '/',
		0x37: '*', 0x39: ' ', 0x4A: '-',
	},
	// Plane 3: shift and caps lock cancel for letters.
	{
		0x01: 27,
		0x02: '!', 0x03: '@', 0x04: '#', 0x05: '$', 0x06: '%',
		0x07: '^', 0x08: '&', 0x09: '*', 0x0A: '(', 0x0B: ')',
		0x0C: '_', 0x0D: '+', 0x0E: '\b', 0x0F: '\t',
		0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
		0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
		0x1A: '{', 0x1B: '}', 0x1C: '\n',
		0x1E: 'a', 0x1F: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
		0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',
		0x27: ':', 0x28: '"', 0x29: '~', 0x2B: '|',
		0x2C: 'z', 0x2D: 'x', 0x2E: 'c', 0x2F: 'v', 0x30: 'b',
		0x31: 'n', 0x32: 'm', 0x33: '<', 0x34: '>', 0x35: '?',
		0x37: '*', 0x39: ' ', 0x4A: '-',
	},
}
