package prog

// shell.go is the command interpreter spawned on each terminal at boot.

import (
	"strings"

	"github.com/psyche-os/psyche/internal/kernel"
)

const prompt = "psyche> "

// shellMain reads one command line at a time and executes it, reporting failures and exception
// kills. The shell itself halts on "exit"; a halted root shell is relaunched by the kernel.
func shellMain(u *kernel.UserContext) int32 {
	buf := make([]byte, 128)

	for {
		u.WriteString(1, prompt)

		n := u.Read(0, buf)
		if n <= 0 {
			continue
		}

		command := strings.TrimRight(string(buf[:n]), "\n")
		if strings.TrimSpace(command) == "" {
			continue
		}

		if command == "exit" {
			u.Halt(0)
		}

		switch status := u.Execute(command); status {
		case -1:
			u.WriteString(1, "no such command\n")
		case kernel.ExceptionStatus:
			u.WriteString(1, "program terminated by exception\n")
		}
	}
}
