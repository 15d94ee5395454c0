package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File is a Store keeping one file per key inside a data directory. It is the
// default backend: the terminal equivalent of per-profile browser storage.
type File struct {
	dir string
}

// NewFile creates a file store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

// fileName maps a key to a filename. Keys are generated internally
// (jchat_<kind>_<uuid>) so only the uuid hyphens need no escaping; anything
// outside [A-Za-z0-9_-] is replaced to keep the name filesystem-safe.
func (f *File) fileName(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '%'
		}
	}, key)
	return filepath.Join(f.dir, safe+".json")
}

func (f *File) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.fileName(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *File) Set(key string, value []byte) error {
	// Write-then-rename so a crash mid-write never leaves a torn value.
	path := f.fileName(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *File) Delete(key string) error {
	err := os.Remove(f.fileName(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *File) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
