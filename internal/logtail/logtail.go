package logtail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	initialBuffer = 64 * 1024
	maxLineBytes  = 1024 * 1024
)

var gzipMagic = []byte{0x1f, 0x8b}

// Open returns a reader for path, transparently decompressing gzip files.
// Compression is detected from the file contents, not the name.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	br := bufio.NewReader(file)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, fmt.Errorf("read log: %w", err)
	}
	if !bytes.Equal(head, gzipMagic) {
		return readCloser{Reader: br, Closer: file}, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open gzip log: %w", err)
	}
	return readCloser{Reader: zr, Closer: closers{zr, file}}, nil
}

// Compressed reports whether path holds gzip data.
func Compressed(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()
	head := make([]byte, len(gzipMagic))
	if _, err := io.ReadFull(file, head); err != nil {
		return false
	}
	return bytes.Equal(head, gzipMagic)
}

type readCloser struct {
	io.Reader
	io.Closer
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Load returns every line of path together with the byte offset a follower
// should resume from. Compressed files cannot be followed and report -1.
func Load(path string) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log: %w", err)
	}
	size := info.Size()

	var (
		r      io.Reader
		offset = size
	)
	br := bufio.NewReader(io.LimitReader(file, size))
	if head, _ := br.Peek(len(gzipMagic)); bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, 0, fmt.Errorf("open gzip log: %w", err)
		}
		defer zr.Close()
		r, offset = zr, -1
	} else {
		r = br
	}

	var lines []string
	err = Scan(context.Background(), r, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return lines, offset, nil
}

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	rc, err := Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	if maxLines <= 0 {
		var lines []string
		err := Scan(context.Background(), rc, func(line string) error {
			lines = append(lines, line)
			return nil
		})
		return lines, err
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	err = Scan(context.Background(), rc, func(line string) error {
		ring[idx] = line
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Scan calls fn for every line of r until EOF, an error from fn, or ctx is
// done. Trailing carriage returns are stripped. Lines longer than 1 MiB are
// an error.
func Scan(ctx context.Context, r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBuffer), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(strings.TrimSuffix(scanner.Text(), "\r")); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	return nil
}
