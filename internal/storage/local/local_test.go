package local

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/domain"
)

func newTestStore(t *testing.T) (*LocalStore, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "vault")
	store, err := New(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, root
}

func readAll(t *testing.T, store *LocalStore, id uuid.UUID, name string) string {
	t.Helper()
	obj, err := store.Open(id, name)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestSaveAndOpen(t *testing.T) {
	store, root := newTestStore(t)
	id := uuid.New()

	n, err := store.Save(id, "client.exe", strings.NewReader("binary"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 bytes, got %d", n)
	}
	if got := readAll(t, store, id, "client.exe"); got != "binary" {
		t.Fatalf("expected binary, got %q", got)
	}

	entries, _ := os.ReadDir(filepath.Join(root, id.String()))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestSave_Overwrites(t *testing.T) {
	store, _ := newTestStore(t)
	id := uuid.New()

	store.Save(id, "a.zip", strings.NewReader("first"))
	store.Save(id, "a.zip", strings.NewReader("second"))

	if got := readAll(t, store, id, "a.zip"); got != "second" {
		t.Fatalf("expected second, got %q", got)
	}
}

func TestSave_ConcurrentWritersNeverTruncate(t *testing.T) {
	store, _ := newTestStore(t)
	id := uuid.New()
	a := strings.Repeat("a", 1<<16)
	b := strings.Repeat("b", 1<<16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := a
			if i%2 == 1 {
				body = b
			}
			store.Save(id, "out.deb", strings.NewReader(body))
		}(i)
	}
	wg.Wait()

	got := readAll(t, store, id, "out.deb")
	if got != a && got != b {
		t.Fatalf("expected one complete body, got %d mixed bytes", len(got))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSave_FailedWriteLeavesNothing(t *testing.T) {
	store, _ := newTestStore(t)
	id := uuid.New()

	_, err := store.Save(id, "x.apk", failingReader{})
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if _, err := store.Open(id, "x.apk"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpen_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Open(uuid.New(), "missing.exe"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpen_RejectsPathElements(t *testing.T) {
	store, _ := newTestStore(t)
	id := uuid.New()
	for _, name := range []string{"../../etc/passwd", "/etc/passwd", "..", ".", "a/b", `a\b`, ""} {
		if _, err := store.Open(id, name); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%q: expected ErrInvalidInput, got %v", name, err)
		}
		if _, err := store.Save(id, name, strings.NewReader("x")); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%q: expected ErrInvalidInput on save, got %v", name, err)
		}
	}
}

func TestOpen_SymlinkEscapeForbidden(t *testing.T) {
	store, root := newTestStore(t)
	id := uuid.New()

	outside := filepath.Join(t.TempDir(), "secret.txt")
	os.WriteFile(outside, []byte("top secret"), 0644)

	dir := filepath.Join(root, id.String())
	os.MkdirAll(dir, 0755)
	if err := os.Symlink(outside, filepath.Join(dir, "leak.exe")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := store.Open(id, "leak.exe")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestOpen_SymlinkedJobDirForbidden(t *testing.T) {
	store, root := newTestStore(t)
	id := uuid.New()

	outsideDir := t.TempDir()
	os.WriteFile(filepath.Join(outsideDir, "icon.png"), []byte("x"), 0644)
	if err := os.Symlink(outsideDir, filepath.Join(root, id.String())); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := store.Open(id, "icon.png")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestOpen_SymlinkInsideJobAllowed(t *testing.T) {
	store, root := newTestStore(t)
	id := uuid.New()
	store.Save(id, "real.zip", strings.NewReader("zip"))

	dir := filepath.Join(root, id.String())
	if err := os.Symlink(filepath.Join(dir, "real.zip"), filepath.Join(dir, "alias.zip")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if got := readAll(t, store, id, "alias.zip"); got != "zip" {
		t.Fatalf("expected zip, got %q", got)
	}
}

func TestRemoveAndListJobs(t *testing.T) {
	store, root := newTestStore(t)
	a, b := uuid.New(), uuid.New()
	store.Save(a, "icon.png", strings.NewReader("x"))
	store.Save(b, "icon.png", strings.NewReader("y"))
	os.MkdirAll(filepath.Join(root, "not-a-job"), 0755)

	ids, err := store.ListJobs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 job dirs, got %d", len(ids))
	}

	if err := store.RemoveJob(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Open(a, "icon.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}
