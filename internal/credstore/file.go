package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const kSnapshotFileMode = 0o600

// FileStore keeps the snapshot as an indented JSON document at Path.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Path == "" {
		return fmt.Errorf("snapshot path is required")
	}

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookie snapshot: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	// Write next to the target and rename so a reader never sees a torn file.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(kSnapshotFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.Path, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	fi, err := os.Stat(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("%s: %w", s.Path, ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("stat snapshot %s: %w", s.Path, err)
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm()&0o077 != 0 {
		return Snapshot{}, fmt.Errorf("snapshot %s has insecure permissions %#o (want 0600)", s.Path, fi.Mode().Perm())
	}

	b, err := os.ReadFile(s.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", s.Path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.Path, err)
	}
	return snap, nil
}
