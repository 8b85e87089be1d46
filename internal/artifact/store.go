// Package artifact persists fitted pipeline objects.
//
// The Store contract is deliberately small: an object saved under a path
// can be loaded back into a value of the same type and behaves identically.
// FileStore implements it with encoding/gob and atomic file replacement.
package artifact

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/pkg/logger"
)

// Store saves and loads opaque objects by path.
type Store interface {
	Save(path string, v any) error
	Load(path string, v any) error
}

// Reverter is implemented by stores that can undo their last Save.
type Reverter interface {
	Revert(path string) error
}

// Fingerprinter is implemented by stores that can digest a saved object.
type Fingerprinter interface {
	Fingerprint(path string) (string, error)
}

const prevSuffix = ".prev"

type FileStore struct{}

func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save gob-encodes v into path. Missing directories are created. The new
// content is written to a temporary file and renamed into place, so readers
// never observe a partial artifact. An existing file is kept as path.prev.
func (s *FileStore) Save(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistenceErr("failed to create artifact directory "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return persistenceErr("failed to create temporary file for "+path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return persistenceErr("failed to encode artifact "+path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return persistenceErr("failed to sync artifact "+path, err)
	}
	if err := tmp.Close(); err != nil {
		return persistenceErr("failed to close artifact "+path, err)
	}

	prev := path + prevSuffix
	if err := os.Remove(prev); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistenceErr("failed to clear previous generation of "+path, err)
	}
	if err := os.Link(path, prev); err != nil && !errors.Is(err, fs.ErrNotExist) {
		if err := copyFile(path, prev); err != nil {
			return persistenceErr("failed to keep previous generation of "+path, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return persistenceErr("failed to move artifact into place at "+path, err)
	}

	logger.Debug("Artifact saved", zap.String("path", path), zap.String("type", fmt.Sprintf("%T", v)))
	return nil
}

// Load decodes the artifact at path into v, which must be a pointer.
func (s *FileStore) Load(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return persistenceErr("failed to open artifact "+path, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return persistenceErr("failed to decode artifact "+path, err)
	}
	return nil
}

// Fingerprint returns the hex SHA-256 of the artifact bytes at path.
func (s *FileStore) Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", persistenceErr("failed to open artifact "+path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", persistenceErr("failed to read artifact "+path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Revert restores the generation that the last Save replaced. When the last
// Save created the file, the file is removed.
func (s *FileStore) Revert(path string) error {
	prev := path + prevSuffix
	if _, err := os.Stat(prev); errors.Is(err, fs.ErrNotExist) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return persistenceErr("failed to remove artifact "+path, err)
		}
		logger.Warn("Artifact removed", zap.String("path", path))
		return nil
	}

	if err := os.Rename(prev, path); err != nil {
		return persistenceErr("failed to restore previous generation of "+path, err)
	}
	logger.Warn("Artifact reverted to previous generation", zap.String("path", path))
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func persistenceErr(msg string, err error) error {
	return errs.New(errs.StagePersistence, errs.KindPersistence, msg, err)
}
