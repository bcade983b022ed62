package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/psyche-os/psyche/internal/cli"
	"github.com/psyche-os/psyche/internal/fs"
	"github.com/psyche-os/psyche/internal/log"
	"github.com/psyche-os/psyche/internal/prog"
)

// Mkfs returns the command that assembles a boot image.
func Mkfs() cli.Command {
	return &mkfs{}
}

type mkfs struct {
	out     string
	noProgs bool
}

var _ cli.Command = (*mkfs)(nil)

func (mkfs) Description() string {
	return "assemble a file-system image"
}

func (mkfs) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `mkfs [-o psyche.img] [file]...

Assembles a boot image: the directory, the tick device, the built-in programs, and the named
host files. File names longer than 32 bytes are truncated, as the on-disk format requires.`)

	return err
}

func (m *mkfs) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("mkfs", flag.ExitOnError)

	fs.StringVar(&m.out, "o", "psyche.img", "write the image to `path`")
	fs.BoolVar(&m.noProgs, "no-programs", false, "leave out the built-in programs")

	return fs
}

func (m *mkfs) Run(_ context.Context, args []string, out io.Writer, logger *log.Logger) int {
	builder := fs.NewBuilder().AddTickDevice("rtc")

	if !m.noProgs {
		prog.AddAll(builder)
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("reading file", "err", err)
			return 1
		}

		builder.AddFile(filepath.Base(path), data)
	}

	image, err := builder.Build()
	if err != nil {
		logger.Error("assembling image", "err", err)
		return 1
	}

	if err := os.WriteFile(m.out, image, 0o644); err != nil {
		logger.Error("writing image", "err", err)
		return 1
	}

	fmt.Fprintf(out, "%s: %d bytes\n", m.out, len(image))

	return 0
}
