package logtail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

const defaultFollowInterval = 100 * time.Millisecond

// FollowOptions tune Follow.
type FollowOptions struct {
	// Interval is the minimum time between two reads of the file. Writes
	// arriving faster are coalesced into one read.
	Interval time.Duration
	Logger   *slog.Logger
}

// ReadFrom calls fn for each complete line found at or after offset and
// returns the offset just past the last complete line. A trailing line
// without a newline is left for the next call. When the file shrank below
// offset it is assumed to have been truncated and is read from the start.
func ReadFrom(path string, offset int64, fn func(line string) error) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log: %w", err)
	}

	reader := bufio.NewReaderSize(file, initialBuffer)
	for {
		chunk, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log: %w", err)
		}
		offset += int64(len(chunk))
		line := strings.TrimSuffix(strings.TrimSuffix(chunk, "\n"), "\r")
		if err := fn(line); err != nil {
			return offset, err
		}
	}
}

// Follow watches path and calls fn for every line appended after offset. It
// blocks until ctx is done or the watcher fails to start.
func Follow(ctx context.Context, path string, offset int64, fn func(line string) error, opts FollowOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultFollowInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var pending <-chan time.Time

	read := func() error {
		next, err := ReadFrom(path, offset, fn)
		offset = next
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !limiter.Allow() {
				if pending == nil {
					pending = time.After(interval)
				}
				continue
			}
			if err := read(); err != nil {
				logger.Warn("follow read failed", "path", path, "error", err)
			}
		case <-pending:
			pending = nil
			if err := read(); err != nil {
				logger.Warn("follow read failed", "path", path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("follow watcher error", "path", path, "error", err)
		}
	}
}
