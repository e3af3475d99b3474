package docstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docmind/internal/access"
	"docmind/internal/util"
)

// Store owns the per-user document namespace on disk. Layout is
// <root>/<owner>/<filename>; a reference serializes as "owner/filename".
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// DirFor ensures the user's storage root exists. MkdirAll makes the
// call idempotent and safe under concurrent uploads.
func (s *Store) DirFor(username string) (string, error) {
	dir := filepath.Join(s.root, username)
	if err := util.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Save writes the document under the user's root, overwriting any
// existing file with the same name. Fingerprinting happens at the
// index-cache layer, not here.
func (s *Store) Save(username, filename string, r io.Reader) (string, error) {
	dir, err := s.DirFor(username)
	if err != nil {
		return "", err
	}
	path := util.SafeJoin(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close document: %w", err)
	}
	return path, nil
}

// ListAccessible scans every owner's root and keeps the PDFs the
// requester may see. Output is sorted so listings are deterministic.
func (s *Store) ListAccessible(role access.Role, requester string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read data root: %w", err)
	}
	refs := make([]string, 0)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		owner := e.Name()
		if !access.CanView(role, owner, requester) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, owner))
		if err != nil {
			return nil, fmt.Errorf("read owner dir %s: %w", owner, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(f.Name()), ".pdf") {
				refs = append(refs, owner+"/"+f.Name())
			}
		}
	}
	sort.Strings(refs)
	return refs, nil
}

// Resolve turns "owner/filename" into an absolute path. The permission
// check runs before the existence check so an unauthorized caller
// cannot tell a forbidden document from a missing one.
func (s *Store) Resolve(ref string, role access.Role, requester string) (string, error) {
	owner, filename, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	if !access.CanView(role, owner, requester) {
		return "", util.ErrUnauthorized
	}
	path := filepath.Join(s.root, owner, filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		return "", util.ErrNotFound
	}
	return path, nil
}

// Delete removes a document. Deletion is admin-only regardless of
// ownership; the permission check still runs before the existence check.
func (s *Store) Delete(ref string, role access.Role) error {
	owner, filename, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if !access.CanDelete(role) {
		return util.ErrUnauthorized
	}
	path := filepath.Join(s.root, owner, filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		return util.ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// ParseRef splits "owner/filename" on the first slash only.
func ParseRef(ref string) (owner, filename string, err error) {
	owner, filename, ok := strings.Cut(ref, "/")
	if !ok || owner == "" || filename == "" {
		return "", "", fmt.Errorf("invalid document reference %q", ref)
	}
	return owner, filename, nil
}
