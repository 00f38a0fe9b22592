package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// Sink is where the assembler writes output files. Names are slash-separated
// and relative to the sink root.
type Sink interface {
	WriteFile(name string, data []byte) error
	Exists(name string) bool
}

// FSSink writes files under Dir. Each file is written atomically, so a file
// that exists is always complete.
type FSSink struct {
	Dir string
}

func (s FSSink) path(name string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(name))
}

func (s FSSink) WriteFile(name string, data []byte) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s FSSink) Exists(name string) bool {
	info, err := os.Stat(s.path(name))
	return err == nil && info.Mode().IsRegular()
}

// ReadFile returns a file previously written under name.
func (s FSSink) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(s.path(name))
}

// Remove deletes name. A missing file is not an error.
func (s FSSink) Remove(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// MemSink keeps output in memory and remembers the order files were written.
type MemSink struct {
	mu    sync.Mutex
	files map[string][]byte
	order []string
}

func NewMemSink() *MemSink {
	return &MemSink{files: make(map[string][]byte)}
}

func (s *MemSink) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	s.order = append(s.order, name)
	return nil
}

func (s *MemSink) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}

// File returns the content written under name.
func (s *MemSink) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// Order returns file names in write order.
func (s *MemSink) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
