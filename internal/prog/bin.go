package prog

// bin.go holds the small utilities the shell can run.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/psyche-os/psyche/internal/kernel"
)

// lsMain lists the directory: one entry name per read, printed one per line.
func lsMain(u *kernel.UserContext) int32 {
	fd := u.Open(".")
	if fd < 0 {
		u.WriteString(1, "ls: cannot open directory\n")
		return 1
	}

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

		u.WriteString(1, name+"\n")
	}

	u.Close(fd)

	return 0
}

// catMain streams the named file to the terminal.
func catMain(u *kernel.UserContext) int32 {
	args := make([]byte, 128)
	if u.GetArgs(args) != 0 {
		u.WriteString(1, "cat: missing file name\n")
		return 1
	}

	name := cstr(args)
	if name == "" {
		u.WriteString(1, "cat: missing file name\n")
		return 1
	}

	fd := u.Open(name)
	if fd < 0 {
		u.WriteString(1, "cat: cannot open "+name+"\n")
		return 1
	}

	buf := make([]byte, 1024)

	for {
		n := u.Read(fd, buf)
		if n <= 0 {
			break
		}

		u.Write(1, buf[:n])
	}

	u.Close(fd)

	return 0
}

// helloMain asks for a name and greets it.
func helloMain(u *kernel.UserContext) int32 {
	u.WriteString(1, "Hi, what's your name? ")

	buf := make([]byte, 128)

	n := u.Read(0, buf)
	if n < 0 {
		n = 0
	}

	name := strings.TrimRight(string(buf[:n]), "\n")

	u.WriteString(1, "Hello, "+name+"!\n")

	return 0
}

// counterMain counts ticks out loud. An optional argument picks the rate in Hz; the count runs
// to ten and halts.
func counterMain(u *kernel.UserContext) int32 {
	fd := u.Open("rtc")
	if fd < 0 {
		u.WriteString(1, "counter: no tick source\n")
		return 1
	}

	args := make([]byte, 32)
	if u.GetArgs(args) == 0 {
		if hz, err := strconv.Atoi(cstr(args)); err == nil && hz > 0 {
			if u.Write(fd, leWord(uint32(hz))) != 0 {
				u.WriteString(1, "counter: bad rate\n")
				u.Close(fd)
				return 1
			}
		}
	}

	for i := 1; i <= 10; i++ {
		u.Read(fd, nil)
		u.WriteString(1, fmt.Sprintf("%d ", i))
	}

	u.WriteString(1, "\n")
	u.Close(fd)

	return 0
}

// pingpongMain bounces a ball across the mapped console page, paced by the tick source. An
// optional argument bounds the number of frames; without one it runs until killed.
func pingpongMain(u *kernel.UserContext) int32 {
	video, ret := u.Vidmap()
	if ret != 0 {
		u.WriteString(1, "pingpong: vidmap failed\n")
		return 1
	}

	fd := u.Open("rtc")
	if fd < 0 {
		u.WriteString(1, "pingpong: no tick source\n")
		return 1
	}

	u.Write(fd, leWord(32))

	frames := -1

	args := make([]byte, 32)
	if u.GetArgs(args) == 0 {
		if n, err := strconv.Atoi(cstr(args)); err == nil && n > 0 {
			frames = n
		}
	}

	const row = 12

	x, dx := 0, 1

	cell := func(col int) kernel.VirtAddr {
		return video + kernel.VirtAddr(2*(row*80+col))
	}

	for i := 0; frames < 0 || i < frames; i++ {
		u.Store16(cell(x), uint16(' ')|0x0F00)

		x += dx
		if x <= 0 || x >= 79 {
			dx = -dx
		}

		u.Store16(cell(x), uint16('o')|0x0F00)
		u.Read(fd, nil)
	}

	u.Close(fd)

	return 0
}

// cstr cuts a NUL-terminated byte buffer down to its string.
func cstr(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}

	return string(b)
}

func leWord(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
