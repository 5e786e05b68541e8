package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when a key has no object
	ErrNotFound = errors.New("object not found")
	// ErrConflict is returned when a version-stamped write lost a race
	ErrConflict = errors.New("object version conflict")
)

// Error is a storage failure on a specific key
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ObjectStore is a durable key/value store addressed by hierarchical keys.
// Writes replace whole objects.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// FSStore keeps objects as files below a root on an afero filesystem
type FSStore struct {
	fs afero.Fs
}

// NewFSStore creates a store rooted at root on the OS filesystem
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FSStore{fs: afero.NewBasePathFs(afero.NewOsFs(), root)}, nil
}

// NewMemStore creates an in-memory store
func NewMemStore() *FSStore {
	return &FSStore{fs: afero.NewMemMapFs()}
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return path.Clean(key), nil
}

// Get reads one object
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	k, err := cleanKey(key)
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}

	data, err := afero.ReadFile(s.fs, k)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// Put writes one object. The data lands under a temporary name first and is
// renamed into place so readers never see a partial object.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	k, err := cleanKey(key)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	if err := s.fs.MkdirAll(path.Dir(k), 0755); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	tmp := k + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	if err := s.fs.Rename(tmp, k); err != nil {
		_ = s.fs.Remove(tmp)
		return &Error{Op: "put", Key: key, Err: err}
	}
	return nil
}

// Delete removes one object. Deleting a missing key is not an error.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	k, err := cleanKey(key)
	if err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}

	if err := s.fs.Remove(k); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Exists reports whether key holds an object
func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, &Error{Op: "stat", Key: key, Err: err}
	}
	ok, err := afero.Exists(s.fs, k)
	if err != nil {
		return false, &Error{Op: "stat", Key: key, Err: err}
	}
	return ok, nil
}

// List returns every object key below prefix, sorted
func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	root, err := cleanKey(prefix)
	if err != nil {
		return nil, &Error{Op: "list", Key: prefix, Err: err}
	}

	ok, err := afero.DirExists(s.fs, root)
	if err != nil {
		return nil, &Error{Op: "list", Key: prefix, Err: err}
	}
	if !ok {
		return nil, nil
	}

	var keys []string
	err = afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		keys = append(keys, strings.TrimPrefix(path.Clean(filepathToSlash(p)), "/"))
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "list", Key: prefix, Err: err}
	}

	sort.Strings(keys)
	return keys, nil
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
