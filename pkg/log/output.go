package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ConsoleOutput writes to stderr unless another writer is provided.
type ConsoleOutput struct {
	mu     sync.Mutex
	Writer io.Writer
}

// NewConsoleOutput returns a ConsoleOutput bound to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{Writer: os.Stderr} }

// NewWriterOutput writes formatted entries to w.
func NewWriterOutput(w io.Writer) *ConsoleOutput { return &ConsoleOutput{Writer: w} }

func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.Writer
	if w == nil {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

func (o *ConsoleOutput) Close() error { return nil }

// FileOutput appends entries to a file, creating parent directories.
type FileOutput struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileOutput opens path for appending.
func NewFileOutput(path string) (*FileOutput, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{f: f}, nil
}

func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.f.Write(formatted)
	return err
}

func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.f.Close()
}

// NullOutput discards everything.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }
