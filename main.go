// psyche is the command-line interface to the PSYCHE kernel simulator and its tool suite.
package main

import (
	"context"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/psyche-os/psyche/internal/cli"
	"github.com/psyche-os/psyche/internal/cli/cmd"
	"github.com/psyche-os/psyche/internal/log"
)

var commands = []cli.Command{
	cmd.Run(),
	cmd.Mkfs(),
	cmd.Monitor(),
}

// Entry point. Global options come before the sub-command; each sub-command parses its own.
func main() {
	optLogFile := getopt.StringLong("log", 'l', "", "Write logs to a file instead of stderr")
	optQuiet := getopt.BoolLong("quiet", 'q', "Log errors only")
	getopt.SetParameters("<command> [option]... [arg]...")
	getopt.Parse()

	logOut := os.Stderr

	if *optLogFile != "" {
		file, err := os.Create(*optLogFile)
		if err == nil {
			logOut = file
			defer file.Close()
		}
	}

	if *optQuiet {
		log.LogLevel.Set(log.Error)
	}

	logger := log.NewFormattedLogger(logOut)

	result :=
		cli.New(context.Background()).
			WithLogger(logger).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(getopt.Args())

	os.Exit(result)
}
