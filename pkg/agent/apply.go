package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
)

// ReloadPendingSuffix names the marker kept next to the output file while BIRD has not
// loaded its current content.
const ReloadPendingSuffix = ".reload-pending"

func markReloadPending(output string) error {
	if err := os.WriteFile(output+ReloadPendingSuffix, nil, 0o644); err != nil {
		return fmt.Errorf("mark reload pending: %w", err)
	}
	return nil
}

func reloadPending(output string) bool {
	_, err := os.Stat(output + ReloadPendingSuffix)
	return err == nil
}

func clearReloadPending(output string) error {
	if err := os.Remove(output + ReloadPendingSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear reload pending: %w", err)
	}
	return nil
}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// BirdReloader asks a running BIRD daemon to re-read its configuration.
// It assumes birdc is installed and the caller may talk to the control socket.
type BirdReloader struct {
	Birdc  string // defaults to "birdc"
	Socket string // optional control socket (-s)
	Run    Runner // defaults to os/exec
}

// Reload runs `birdc [-s socket] configure`.
func (r BirdReloader) Reload(ctx context.Context) error {
	name := r.Birdc
	if name == "" {
		name = "birdc"
	}
	var args []string
	if r.Socket != "" {
		args = append(args, "-s", r.Socket)
	}
	args = append(args, "configure")
	return run(ctx, r.Run, name, args...)
}

func run(ctx context.Context, runner Runner, name string, args ...string) error {
	if runner == nil {
		runner = execRunner
	}
	out, err := runner(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%s %v failed: %v output=%s", name, args, err, string(out))
	}
	return nil
}
