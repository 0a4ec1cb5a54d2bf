package cache

import (
	"context"
	"os"
	"path/filepath"
)

// LocalBackend keeps entries as one JSON file per key under a directory.
// This is the workstation default; pipeline runs use RemoteBackend because
// their filesystems do not survive the job.
type LocalBackend struct {
	dir string
}

// NewLocalBackend creates the cache directory if needed.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &LocalBackend{dir: dir}, nil
}

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, key+".json"))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *LocalBackend) Put(_ context.Context, key string, data []byte) error {
	return os.WriteFile(filepath.Join(b.dir, key+".json"), data, 0600)
}
