package local

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/storage"
)

type LocalStore struct {
	basePath string
}

func New(basePath string) (*LocalStore, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{basePath: abs}, nil
}

func (s *LocalStore) jobDir(jobID uuid.UUID) string {
	return filepath.Join(s.basePath, jobID.String())
}

func (s *LocalStore) Save(jobID uuid.UUID, name string, reader io.Reader) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("%w: create job dir: %v", domain.ErrStorage, err)
	}
	if _, err := s.contain(dir, dir); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("%w: create temp file: %v", domain.ErrStorage, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("%w: write file: %w", domain.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("%w: sync file: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("%w: close file: %v", domain.ErrStorage, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return 0, fmt.Errorf("%w: chmod file: %v", domain.ErrStorage, err)
	}

	// rename replaces any existing file (or symlink) atomically
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return 0, fmt.Errorf("%w: publish file: %v", domain.ErrStorage, err)
	}
	return n, nil
}

func (s *LocalStore) Open(jobID uuid.UUID, name string) (*storage.Object, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	dir := s.jobDir(jobID)
	target := filepath.Join(dir, name)
	if _, err := os.Lstat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: stat file: %v", domain.ErrStorage, err)
	}

	resolved, err := s.contain(dir, target)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: open file: %v", domain.ErrStorage, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat file: %v", domain.ErrStorage, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, domain.ErrNotFound
	}

	return &storage.Object{
		ReadSeekCloser: f,
		Name:           name,
		Size:           info.Size(),
		ModTime:        info.ModTime(),
	}, nil
}

func (s *LocalStore) RemoveJob(jobID uuid.UUID) error {
	if err := os.RemoveAll(s.jobDir(jobID)); err != nil {
		return fmt.Errorf("%w: remove job dir: %v", domain.ErrStorage, err)
	}
	return nil
}

// ListJobs returns the ids of all job directories. Entries that are not
// canonical job ids are skipped.
func (s *LocalStore) ListJobs() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read storage dir: %v", domain.ErrStorage, err)
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil || id.String() != e.Name() {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// contain resolves symlinks in both the job directory and target and
// verifies the target stays inside the job directory, which itself must
// stay inside the store root. It returns the resolved target path.
func (s *LocalStore) contain(dir, target string) (string, error) {
	root, err := filepath.EvalSymlinks(s.basePath)
	if err != nil {
		return "", fmt.Errorf("%w: resolve root: %v", domain.ErrStorage, err)
	}
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("%w: resolve job dir: %v", domain.ErrStorage, err)
	}
	if !within(root, resolvedDir) {
		return "", fmt.Errorf("%w: job dir %s escapes storage root", domain.ErrForbidden, dir)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// dangling symlink
			return "", fmt.Errorf("%w: unresolvable path %s", domain.ErrForbidden, target)
		}
		return "", fmt.Errorf("%w: resolve file: %v", domain.ErrStorage, err)
	}
	if !within(resolvedDir, resolved) {
		return "", fmt.Errorf("%w: %s resolves outside %s", domain.ErrForbidden, target, dir)
	}
	return resolved, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel))
}

// checkName rejects anything that is not a single plain path element.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) ||
		filepath.IsAbs(name) || filepath.Base(name) != name {
		return fmt.Errorf("%w: invalid file name %q", domain.ErrInvalidInput, name)
	}
	return nil
}
