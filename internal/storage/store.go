package storage

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Object is an opened stored file.
type Object struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// FileStore keeps files in one directory per job.
type FileStore interface {
	// Save publishes reader under name in the job's directory. Readers never
	// observe a partially written file.
	Save(jobID uuid.UUID, name string, reader io.Reader) (size int64, err error)
	// Open returns domain.ErrNotFound for missing files and
	// domain.ErrForbidden when the resolved path leaves the job directory.
	Open(jobID uuid.UUID, name string) (*Object, error)
	RemoveJob(jobID uuid.UUID) error
	ListJobs() ([]uuid.UUID, error)
}
