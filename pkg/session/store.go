package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Store maps session ids to the directories holding their pairing artifacts.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		root = "./sessions"
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create session root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Path(id string) string {
	return filepath.Join(s.root, id)
}

// Exists reports whether a persisted session directory is present for id.
func (s *Store) Exists(id string) bool {
	if !validID(id) {
		return false
	}
	info, err := os.Stat(s.Path(id))
	return err == nil && info.IsDir()
}

// Remove deletes the persisted directory for id. A missing directory is not an error.
func (s *Store) Remove(id string) error {
	if !validID(id) {
		return ErrInvalidID
	}
	err := os.RemoveAll(s.Path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the ids of all persisted session directories.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && validID(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id
}
