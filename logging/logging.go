package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Log files are capped; one rotated backup is kept alongside the
// active file.
const defaultMaxSize = 2 * 1024 * 1024 // 2MB

// Writer is a size-capped append writer backing the stdlib logger.
// When the active file crosses the cap it is renamed to <path>.1,
// replacing any previous backup, and a fresh file is started.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup opens (or creates) the log file at path and points the stdlib
// logger at it, mirrored to stdout. An empty path leaves logging on
// stdout only and returns a nil Writer.
func Setup(path string) (*Writer, error) {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	if path == "" {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	w := &Writer{
		file:    f,
		path:    path,
		size:    size,
		maxSize: defaultMaxSize,
	}
	if w.size > w.maxSize {
		w.mu.Lock()
		w.rotate()
		w.mu.Unlock()
	}

	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if w.size > w.maxSize {
		w.rotate()
	}
	return n, err
}

// rotate must be called with the mutex held
func (w *Writer) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	w.file = f
	w.size = 0
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
