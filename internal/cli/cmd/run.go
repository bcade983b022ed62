package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/psyche-os/psyche/internal/cli"
	"github.com/psyche-os/psyche/internal/kernel"
	"github.com/psyche-os/psyche/internal/log"
	"github.com/psyche-os/psyche/internal/prog"
	"github.com/psyche-os/psyche/internal/tty"
)

// Run returns the command that boots a machine on the host terminal.
func Run() cli.Command {
	return &runner{}
}

type runner struct {
	logLevel slog.Level
	image    string
	boot     string
}

var _ cli.Command = (*runner)(nil)

func (runner) Description() string {
	return "boot the machine on this terminal"
}

func (runner) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run [-image file.img] [-boot program]

Boots the kernel with three terminals on the host terminal. Without -image, a disk image holding
just the built-in programs is assembled in memory.

F1 to F3 switch terminals; Ctrl+C shuts the machine down.`)

	return err
}

func (r *runner) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	fs.StringVar(&r.image, "image", "", "boot from file-system `image`")
	fs.StringVar(&r.boot, "boot", "shell", "spawn `program` on each terminal")
	fs.Func("loglevel", "set log `level`", func(s string) error {
		return r.logLevel.UnmarshalText([]byte(s))
	})

	return fs
}

func (r *runner) Run(ctx context.Context, _ []string, _ io.Writer, logger *log.Logger) int {
	log.LogLevel.Set(r.logLevel)

	image, err := bootImage(r.image)
	if err != nil {
		logger.Error("loading image", "err", err)
		return 1
	}

	machine, err := kernel.New(image,
		kernel.WithLogger(logger),
		kernel.WithPrograms(prog.Bodies()),
		kernel.WithBootCommand(r.boot),
		kernel.WithRealtime(),
	)
	if err != nil {
		logger.Error("creating machine", "err", err)
		return 1
	}

	cons, err := tty.NewConsole(os.Stdin, os.Stdout)
	if err != nil {
		logger.Error("opening console", "err", err)
		return 1
	}
	defer cons.Restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- machine.Run(ctx) }()

	err = cons.Run(ctx, machine)

	machine.Shutdown()
	<-runDone

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("console", "err", err)
		return 1
	}

	return 0
}

// bootImage loads the named disk image, or assembles the built-in one.
func bootImage(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}

	return prog.DemoImage()
}
