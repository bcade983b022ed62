// Package cli contains the command-line interface.
package cli

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/psyche-os/psyche/internal/log"
)

// Command represents a sub-command in the CLI. Each sub-command has its own flags, configuration
// and action to perform.
type Command interface {
	// FlagSet returns the set of options the command accepts.
	FlagSet() *flag.FlagSet

	// Description returns a brief description of the command's function.
	Description() string

	// Usage prints detailed command documentation.
	Usage(out io.Writer) error

	// Run executes the command with arguments. Command output is written to out; the return
	// value is the process exit code.
	Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int
}

// Commander is a CLI command-runner that handles the life cycle of a command execution.
type Commander struct {
	ctx context.Context
	log *log.Logger

	help     Command
	commands []Command
}

// New creates a Commander that can start sub-commands.
func New(ctx context.Context) *Commander {
	return &Commander{
		ctx: ctx,
	}
}

// Execute runs the command named by the first argument.
func (cli *Commander) Execute(args []string) int {
	// With no arguments at all, print the top-level help and fail.
	if len(args) == 0 {
		cli.help.Run(cli.ctx, nil, os.Stdout, cli.log)

		return 1
	}

	found := cli.help // Default, if no match.

	for _, cmd := range cli.commands {
		if args[0] == cmd.FlagSet().Name() {
			found = cmd
		}
	}

	fs := found.FlagSet()

	if err := fs.Parse(args[1:]); err != nil {
		cli.log.Error("parse error", "err", err)
		return 1
	}

	return found.Run(cli.ctx, fs.Args(), os.Stdout, cli.log)
}

// WithCommands adds a list of commands as sub-commands.
func (cli *Commander) WithCommands(cmds []Command) *Commander {
	cli.commands = append([]Command(nil), cmds...)
	return cli
}

// WithHelp configures the help command.
func (cli *Commander) WithHelp(cmd Command) *Commander {
	cli.help = cmd
	return cli
}

// WithLogger configures the logger for the CLI. Logs are written to the given stream, leaving
// os.Stdout for program output.
func (cli *Commander) WithLogger(logger *log.Logger) *Commander {
	cli.log = logger

	log.SetDefault(logger)

	return cli
}

// Type aliases from the standard library.
type (
	Flag    = flag.Flag
	FlagSet = flag.FlagSet
)
