package kernel

// test_test.go holds the machine harness shared by the kernel tests: a disk image with
// registered program bodies, a booted machine, and polling helpers.

import (
	"context"
	"encoding/binary"
	"io"
	stdlog "log"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/psyche-os/psyche/internal/fs"
	"github.com/psyche-os/psyche/internal/log"
)

func NewTestHarness(t *testing.T) *testHarness {
	t.Parallel()

	th := &testHarness{T: t}
	th.log = log.NewFormattedLogger(th)

	return th
}

type testHarness struct {
	*testing.T
	log *log.Logger
}

// testImage builds an executable image with the given entry point: the magic, the entry word at
// its fixed offset, and a little padding so it looks like a real image.
func testImage(entry uint32) []byte {
	img := make([]byte, 64)
	copy(img, elfMagic)
	binary.LittleEndian.PutUint32(img[elfEntryOffset:], entry)

	return img
}

// machineConfig describes the disk and programs for one test machine.
type machineConfig struct {
	boot     string
	programs map[string]programDef
	files    map[string][]byte
}

type programDef struct {
	entry uint32
	body  Program
}

// Make boots a machine from the config and runs it until the test ends.
func (t *testHarness) Make(cfg machineConfig) *Kernel {
	t.Helper()

	builder := fs.NewBuilder().AddTickDevice("rtc")

	bodies := make(map[uint32]Program)

	for _, name := range sortedKeys(cfg.programs) {
		def := cfg.programs[name]
		builder.AddFile(name, testImage(def.entry))
		bodies[def.entry] = def.body
	}

	for _, name := range sortedKeys(cfg.files) {
		builder.AddFile(name, cfg.files[name])
	}

	image, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}

	boot := cfg.boot
	if boot == "" {
		boot = "shell"
	}

	k, err := New(image,
		WithLogger(t.log),
		WithPrograms(bodies),
		WithBootCommand(boot),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		k.Shutdown()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("machine did not stop")
		}
	})

	return k
}

// idleBody parks a process forever on terminal input, the way an idle shell would. Blocked
// processes consume no machine time, so they do not disturb timing-sensitive scenarios.
func idleBody(u *UserContext) int32 {
	buf := make([]byte, 1)
	for {
		u.Read(0, buf)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// waitFor polls a condition until it holds or the test times out.
func (t *testHarness) waitFor(what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

// screenContains reports whether any display row contains the text.
func screenContains(k *Kernel, text string) bool {
	for _, row := range k.Console().Text(-1) {
		if strings.Contains(row, text) {
			return true
		}
	}

	return false
}

func makeTestLogger(t *testing.T, out io.Writer) *stdlog.Logger {
	s := strings.Split(t.Name(), "/")

	return stdlog.New(out, s[len(s)-1]+": ", stdlog.Lshortfile|stdlog.Lmsgprefix)
}

// Write routes machine logs through the test log.
func (t *testHarness) Write(b []byte) (int, error) {
	t.Helper()

	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}

	t.Log(string(b))

	return len(b), nil
}
