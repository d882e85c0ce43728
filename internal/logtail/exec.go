package logtail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Stream identifies which pipe of a child process a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Exec runs argv and calls fn for every line the process writes to stdout or
// stderr. fn may be called from two goroutines but never concurrently. Exec
// returns once both pipes are drained and the process has exited; the
// returned status is the exit code, or -1 when the process did not run to
// completion.
func Exec(ctx context.Context, argv []string, fn func(stream Stream, line string) error) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("exec: empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("exec stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("exec stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("exec %s: %w", argv[0], err)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	pump := func(stream Stream, r io.Reader) {
		defer wg.Done()
		_ = Scan(ctx, r, func(line string) error {
			mu.Lock()
			defer mu.Unlock()
			return fn(stream, line)
		})
		// Drain so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
	wg.Add(2)
	go pump(Stdout, stdout)
	go pump(Stderr, stderr)
	wg.Wait()

	err = cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("exec %s: %w", argv[0], err)
	}
}
