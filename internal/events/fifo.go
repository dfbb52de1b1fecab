package events

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FIFO is a named pipe opened for non-blocking reads.
type FIFO struct {
	path string
	fd   int
}

// OpenFIFO opens path for non-blocking reading, creating the named pipe
// if it does not exist. Opening never waits for a writer.
func OpenFIFO(path string) (*FIFO, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := unix.Mkfifo(path, 0o666); err != nil && !errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("mkfifo %s: %w", path, err)
		}
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &FIFO{path: path, fd: fd}, nil
}

// Path returns the pipe's filesystem path.
func (f *FIFO) Path() string {
	return f.path
}

// Read reads without blocking. It returns ErrNoData when the pipe is empty
// or no writer is attached.
func (f *FIFO) Read(p []byte) (int, error) {
	n, err := unix.Read(f.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, ErrNoData
		}
		return 0, fmt.Errorf("read %s: %w", f.path, err)
	}
	if n == 0 {
		return 0, ErrNoData
	}
	return n, nil
}

// Close releases the pipe.
func (f *FIFO) Close() error {
	return unix.Close(f.fd)
}
