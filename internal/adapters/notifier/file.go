package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"multiTraderBot/internal/domain"
)

// FileSink appends notifications as JSON lines, one file per symbol, under
// a base directory. Files are opened lazily and kept open for the process
// lifetime.
type FileSink struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileSink creates a file sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create notification directory '%s': %w", dir, err)
	}
	return &FileSink{dir: dir, files: make(map[string]*os.File)}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Send(ctx context.Context, n domain.Notification) error {
	line, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.file(n.Symbol)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append notification for %s: %w", n.Symbol, err)
	}
	return nil
}

func (s *FileSink) file(symbol string) (*os.File, error) {
	name := fileName(symbol)
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open notification file '%s': %w", path, err)
	}
	s.files[name] = f
	return f, nil
}

// fileName maps "BTC/USDT" to "BTC_USDT.jsonl". Events without a symbol go
// to a shared file.
func fileName(symbol string) string {
	if symbol == "" {
		return "notifications.jsonl"
	}
	return strings.ReplaceAll(symbol, "/", "_") + ".jsonl"
}

// Close closes every open notification file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.files, name)
	}
	return firstErr
}
