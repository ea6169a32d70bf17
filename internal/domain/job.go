package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Platform string

const (
	PlatformWindows64 Platform = "windows"
	PlatformWindows32 Platform = "windows-x86"
	PlatformLinux     Platform = "linux"
	PlatformMacOS     Platform = "macos"
	PlatformAndroid   Platform = "android"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformWindows64, PlatformWindows32, PlatformLinux, PlatformMacOS, PlatformAndroid:
		return true
	}
	return false
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionBoth     Direction = "both"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionIncoming, DirectionOutgoing, DirectionBoth:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusInProgress JobStatus = "InProgress"
	JobStatusSuccess    JobStatus = "Success"
	JobStatusFailed     JobStatus = "Failed"
	JobStatusCancelled  JobStatus = "Cancelled"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusInProgress, JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition is defined out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusCancelled
}

type BuildJob struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Platform  Platform  `json:"platform"`
	Direction Direction `json:"direction"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShortID is the first four hex characters of the id.
func (j *BuildJob) ShortID() string {
	return strings.ReplaceAll(j.ID.String(), "-", "")[:4]
}

type JobFilter struct {
	Status    *JobStatus
	Platform  *Platform
	Direction *Direction
	Filename  *string
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
}

type JobStats struct {
	Total      int `json:"total"`
	InProgress int `json:"in_progress"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

type JobRepository interface {
	// Create inserts a job using the id already set on it. It returns
	// ErrConflict if the id is taken.
	Create(ctx context.Context, job *BuildJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*BuildJob, error)
	List(ctx context.Context, filter JobFilter) ([]*BuildJob, int, error)
	// TransitionStatus atomically moves a job from `from` to `to`. It returns
	// ErrNotFound for an unknown id and ErrJobSettled when the job is not in
	// the `from` state.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to JobStatus) (*BuildJob, error)
	ListInProgressBefore(ctx context.Context, cutoff time.Time) ([]*BuildJob, error)
	ListSettledBefore(ctx context.Context, cutoff time.Time) ([]*BuildJob, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetStats(ctx context.Context) (*JobStats, error)
}
