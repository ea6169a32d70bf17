package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock Job Repository ---

type mockJobRepo struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]*domain.BuildJob
	createErr error
	now       time.Time
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[uuid.UUID]*domain.BuildJob), now: time.Now()}
}

func (m *mockJobRepo) Create(_ context.Context, j *domain.BuildJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.jobs[j.ID]; exists {
		return domain.ErrConflict
	}
	j.CreatedAt = m.now
	j.UpdatedAt = m.now
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *mockJobRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.BuildJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobRepo) List(_ context.Context, _ domain.JobFilter) ([]*domain.BuildJob, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.BuildJob{}
	for _, j := range m.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockJobRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.JobStatus) (*domain.BuildJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != from {
		return nil, domain.ErrJobSettled
	}
	j.Status = to
	j.UpdatedAt = time.Now()
	cp := *j
	return &cp, nil
}

func (m *mockJobRepo) ListInProgressBefore(_ context.Context, cutoff time.Time) ([]*domain.BuildJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.BuildJob{}
	for _, j := range m.jobs {
		if j.Status == domain.JobStatusInProgress && j.CreatedAt.Before(cutoff) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockJobRepo) ListSettledBefore(_ context.Context, cutoff time.Time) ([]*domain.BuildJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.BuildJob{}
	for _, j := range m.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockJobRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.jobs[id]
	return ok, nil
}

func (m *mockJobRepo) GetStats(_ context.Context) (*domain.JobStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &domain.JobStats{Total: len(m.jobs)}
	for _, j := range m.jobs {
		switch j.Status {
		case domain.JobStatusInProgress:
			stats.InProgress++
		case domain.JobStatusSuccess:
			stats.Success++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// put inserts a job directly, bypassing id generation.
func (m *mockJobRepo) put(j *domain.BuildJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
}

// --- Mock Audit Repository ---

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(_ context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, _ domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, len(m.entries), nil
}

// --- Mock File Store ---

type mockFileStore struct {
	mu    sync.RWMutex
	files map[uuid.UUID]map[string][]byte
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{files: make(map[uuid.UUID]map[string][]byte)}
}

func (m *mockFileStore) Save(jobID uuid.UUID, name string, reader io.Reader) (int64, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[jobID] == nil {
		m.files[jobID] = make(map[string][]byte)
	}
	m.files[jobID][name] = data
	return int64(len(data)), nil
}

func (m *mockFileStore) Open(jobID uuid.UUID, name string) (*storage.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[jobID][name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &storage.Object{
		ReadSeekCloser: nopSeekCloser{bytes.NewReader(data)},
		Name:           name,
		Size:           int64(len(data)),
	}, nil
}

func (m *mockFileStore) RemoveJob(jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, jobID)
	return nil
}

func (m *mockFileStore) ListJobs() ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.files))
	for id := range m.files {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockFileStore) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, files := range m.files {
		n += len(files)
	}
	return n
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

// --- Mock Dispatcher ---

type dispatchCall struct {
	Platform domain.Platform
	Ref      string
	Inputs   map[string]string
}

type mockDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (m *mockDispatcher) Dispatch(_ context.Context, platform domain.Platform, ref string, inputs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dispatchCall{Platform: platform, Ref: ref, Inputs: inputs})
	return m.err
}
