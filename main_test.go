package main_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/psyche-os/psyche/internal/console"
	"github.com/psyche-os/psyche/internal/kernel"
	"github.com/psyche-os/psyche/internal/log"
	"github.com/psyche-os/psyche/internal/prog"
)

// timeout is how long to wait for the machine to boot to a shell prompt. It is very likely to
// take far less.
var timeout = 10 * time.Second

// TestMain boots the default machine the way the run command does, minus the host terminal, and
// waits for the first shell prompt.
func TestMain(t *testing.T) {
	log.LogLevel.Set(log.Error)

	image, err := prog.DemoImage()
	if err != nil {
		t.Fatal(err)
	}

	machine, err := kernel.New(image, kernel.WithPrograms(prog.Bodies()))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- machine.Run(ctx) }()

	defer func() {
		machine.Shutdown()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Error(err)
			}
		case <-time.After(timeout):
			t.Error("machine did not stop")
		}
	}()

	start := time.Now()

	for time.Now().Before(start.Add(timeout)) {
		for _, row := range machine.Console().Text(console.DisplayFrame) {
			if strings.Contains(row, "psyche>") {
				t.Logf("booted to a prompt in %s", time.Since(start))
				return
			}
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("no shell prompt appeared")
}
