package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/psyche-os/psyche/internal/cli"
	"github.com/psyche-os/psyche/internal/kernel"
	"github.com/psyche-os/psyche/internal/log"
	"github.com/psyche-os/psyche/internal/monitor"
	"github.com/psyche-os/psyche/internal/prog"
)

// Monitor returns the command that boots a machine headless under the interactive monitor.
func Monitor() cli.Command {
	return &monitorCmd{}
}

type monitorCmd struct {
	logLevel slog.Level
	image    string
	boot     string
}

var _ cli.Command = (*monitorCmd)(nil)

func (monitorCmd) Description() string {
	return "boot the machine under the interactive monitor"
}

func (monitorCmd) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `monitor [-image file.img] [-boot program]

Boots the machine headless and drops into a command line for inspecting it: process slots,
frames, injected keys. Type "help" at the prompt for the commands.`)

	return err
}

func (m *monitorCmd) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)

	fs.StringVar(&m.image, "image", "", "boot from file-system `image`")
	fs.StringVar(&m.boot, "boot", "shell", "spawn `program` on each terminal")
	fs.Func("loglevel", "set log `level`", func(s string) error {
		return m.logLevel.UnmarshalText([]byte(s))
	})

	return fs
}

func (m *monitorCmd) Run(ctx context.Context, _ []string, out io.Writer, logger *log.Logger) int {
	log.LogLevel.Set(m.logLevel)

	image, err := bootImage(m.image)
	if err != nil {
		logger.Error("loading image", "err", err)
		return 1
	}

	machine, err := kernel.New(image,
		kernel.WithLogger(logger),
		kernel.WithPrograms(prog.Bodies()),
		kernel.WithBootCommand(m.boot),
		kernel.WithRealtime(),
	)
	if err != nil {
		logger.Error("creating machine", "err", err)
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- machine.Run(ctx) }()

	err = monitor.New(machine, out, logger).Run()

	machine.Shutdown()
	<-runDone

	if err != nil {
		logger.Error("monitor", "err", err)
		return 1
	}

	return 0
}
