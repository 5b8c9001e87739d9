package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/target/inventory-console/internal/ports"
)

var _ ports.KeyValueStore = (*File)(nil)

// File persists entries as a JSON object in a single file. Every mutation
// rewrites the file through a temp file and rename so readers never see a
// partial write. Failures are logged and otherwise ignored.
type File struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// FileOptions groups File dependencies.
type FileOptions struct {
	Path   string
	Logger *slog.Logger
}

// NewFile creates a file-backed store. The file is created lazily on first write.
func NewFile(opts FileOptions) *File {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &File{
		path:   opts.Path,
		logger: logger.With("component", "kvstore_file", "path", opts.Path),
	}
}

// DefaultFilePath returns the per-user session file location.
func DefaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "inventory-console", "session.json")
}

func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.load()[key]
	return v, ok
}

func (f *File) Set(key, value string) {
	f.mutate(func(m map[string]string) { m[key] = value })
}

func (f *File) Remove(key string) {
	f.mutate(func(m map[string]string) { delete(m, key) })
}

func (f *File) Clear() {
	f.mutate(func(m map[string]string) { clear(m) })
}

func (f *File) mutate(fn func(map[string]string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.load()
	fn(m)
	if err := f.save(m); err != nil {
		f.logger.Warn("persist session file failed", "error", err)
	}
}

// load reads the file; a missing or corrupt file reads as empty.
func (f *File) load() map[string]string {
	m := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("read session file failed", "error", err)
		}
		return m
	}
	if len(data) == 0 {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		f.logger.Warn("session file is corrupt; treating as empty", "error", err)
		return make(map[string]string)
	}
	return m
}

func (f *File) save(m map[string]string) error {
	if f.path == "" {
		return errors.New("session file path is empty")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		return errors.Join(fmt.Errorf("write temp file: %w", err), tmp.Close(), os.Remove(tmpName))
	}
	if err := tmp.Chmod(0o600); err != nil {
		return errors.Join(fmt.Errorf("chmod temp file: %w", err), tmp.Close(), os.Remove(tmpName))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("close temp file: %w", err), os.Remove(tmpName))
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Join(fmt.Errorf("rename temp file: %w", err), os.Remove(tmpName))
	}
	return nil
}
