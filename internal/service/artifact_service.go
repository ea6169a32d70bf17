package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/auth"
	"github.com/CaioWing/clientforge/internal/ci"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/imaging"
	"github.com/CaioWing/clientforge/internal/storage"
)

type ImageSlot string

const (
	SlotIcon ImageSlot = "icon"
	SlotLogo ImageSlot = "logo"
)

func (s ImageSlot) Valid() bool {
	return s == SlotIcon || s == SlotLogo
}

// FileName is the name the normalized image is stored under.
func (s ImageSlot) FileName() string {
	return string(s) + ".png"
}

// ImageSource is either an uploaded stream or a data URL.
type ImageSource struct {
	Reader  io.Reader
	DataURL string
}

func (src ImageSource) empty() bool {
	return src.Reader == nil && src.DataURL == ""
}

const DefaultMaxOutputBytes = 2 << 30

var (
	artifactNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)
	outputExtensions    = []string{".exe", ".msi", ".dmg", ".deb", ".apk", ".zip"}

	errOutputTooLarge = errors.New("build output exceeds size limit")
)

type ArtifactConfig struct {
	UploadToken    string
	PublicURL      string
	MaxImageBytes  int64
	MaxOutputBytes int64
}

type ArtifactService struct {
	jobs    domain.JobRepository
	images  storage.FileStore
	outputs storage.FileStore
	cfg     ArtifactConfig
	log     *slog.Logger
}

func NewArtifactService(jobs domain.JobRepository, images, outputs storage.FileStore, cfg ArtifactConfig, log *slog.Logger) *ArtifactService {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = imaging.MaxBytes
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &ArtifactService{jobs: jobs, images: images, outputs: outputs, cfg: cfg, log: log}
}

// PrepareImage enforces the size cap and re-encodes src as PNG. Nothing is
// written.
func (s *ArtifactService) PrepareImage(src ImageSource) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch {
	case src.Reader != nil:
		raw, err = imaging.ReadLimited(src.Reader, s.cfg.MaxImageBytes)
	case src.DataURL != "":
		raw, err = imaging.DecodeDataURL(src.DataURL, s.cfg.MaxImageBytes)
	default:
		return nil, fmt.Errorf("%w: no image provided", domain.ErrInvalidInput)
	}
	if err == nil {
		raw, err = imaging.NormalizePNG(raw)
	}
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrTooLarge):
			return nil, fmt.Errorf("%w: image larger than %d bytes", domain.ErrInvalidInput, s.cfg.MaxImageBytes)
		case errors.Is(err, imaging.ErrDimensions):
			return nil, fmt.Errorf("%w: image dimensions exceed %d pixels", domain.ErrInvalidInput, imaging.MaxPixels)
		case errors.Is(err, imaging.ErrNotImage), errors.Is(err, imaging.ErrBadDataURL):
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		default:
			return nil, err
		}
	}
	return raw, nil
}

// StoreImage validates src, re-encodes it and stores it as the job's icon
// or logo, replacing any earlier one. The returned reference is what the
// build workflow downloads.
func (s *ArtifactService) StoreImage(ctx context.Context, jobID uuid.UUID, slot ImageSlot, src ImageSource) (*ci.ImageRef, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	exists, err := s.jobs.Exists(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	data, err := s.PrepareImage(src)
	if err != nil {
		s.log.Warn("image rejected", "job_id", jobID, "slot", slot, "err", err)
		return nil, err
	}
	return s.saveImage(jobID, slot, data)
}

func (s *ArtifactService) saveImage(jobID uuid.UUID, slot ImageSlot, png []byte) (*ci.ImageRef, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if _, err := s.images.Save(jobID, slot.FileName(), bytes.NewReader(png)); err != nil {
		s.log.Error("store image failed", "job_id", jobID, "slot", slot, "err", err)
		return nil, fmt.Errorf("store %s: %w", slot, err)
	}
	s.log.Info("image stored", "job_id", jobID, "slot", slot, "size", len(png))
	return &ci.ImageRef{URL: s.cfg.PublicURL, UUID: jobID.String(), File: slot.FileName()}, nil
}

// StoreBuildOutput ingests a finished binary from the build pipeline. The
// bytes are written verbatim.
func (s *ArtifactService) StoreBuildOutput(ctx context.Context, jobID uuid.UUID, name string, r io.Reader, token string) (int64, error) {
	if s.cfg.UploadToken == "" {
		s.log.Error("build output rejected: upload token not configured")
		return 0, domain.ErrForbidden
	}
	if !auth.SecretEqual(token, s.cfg.UploadToken) {
		s.log.Warn("build output rejected: bad upload token", "job_id", jobID)
		return 0, domain.ErrForbidden
	}
	if err := checkOutputName(name); err != nil {
		return 0, err
	}
	exists, err := s.jobs.Exists(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if !exists {
		s.log.Warn("build output for unknown job", "job_id", jobID, "name", name)
		return 0, domain.ErrNotFound
	}

	n, err := s.outputs.Save(jobID, name, &capReader{r: r, remaining: s.cfg.MaxOutputBytes})
	if err != nil {
		if errors.Is(err, errOutputTooLarge) {
			return 0, fmt.Errorf("%w: build output larger than %d bytes", domain.ErrInvalidInput, s.cfg.MaxOutputBytes)
		}
		s.log.Error("store build output failed", "job_id", jobID, "name", name, "err", err)
		return 0, err
	}
	s.log.Info("build output stored", "job_id", jobID, "name", name, "size", n)
	return n, nil
}

// OpenBuildOutput returns a finished binary. Only jobs in Success serve
// downloads.
func (s *ArtifactService) OpenBuildOutput(ctx context.Context, rawJobID, name string) (*storage.Object, error) {
	if err := checkOutputName(name); err != nil {
		return nil, err
	}
	jobID, err := ParseJobID(rawJobID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusSuccess {
		return nil, domain.ErrNotFound
	}
	return s.open(s.outputs, jobID, name)
}

// OpenImage returns a stored branding image.
func (s *ArtifactService) OpenImage(ctx context.Context, rawJobID, name string) (*storage.Object, error) {
	if !artifactNamePattern.MatchString(name) || !strings.HasSuffix(strings.ToLower(name), ".png") {
		return nil, fmt.Errorf("%w: invalid image name", domain.ErrInvalidInput)
	}
	jobID, err := ParseJobID(rawJobID)
	if err != nil {
		return nil, err
	}
	return s.open(s.images, jobID, name)
}

func (s *ArtifactService) open(store storage.FileStore, jobID uuid.UUID, name string) (*storage.Object, error) {
	obj, err := store.Open(jobID, name)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			s.log.Warn("artifact path escapes job directory", "job_id", jobID, "name", name)
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error("open artifact failed", "job_id", jobID, "name", name, "err", err)
		}
		return nil, err
	}
	return obj, nil
}

// ParseJobID accepts only the canonical lowercase hyphenated form, which is
// also the name of the job's directories.
func ParseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id.String() != raw {
		return uuid.Nil, fmt.Errorf("%w: invalid job id", domain.ErrInvalidInput)
	}
	return id, nil
}

func checkSlot(slot ImageSlot) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: unknown image slot %q", domain.ErrInvalidInput, slot)
	}
	return nil
}

func checkOutputName(name string) error {
	if !artifactNamePattern.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid file name", domain.ErrInvalidInput)
	}
	lower := strings.ToLower(name)
	for _, ext := range outputExtensions {
		if strings.HasSuffix(lower, ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: file type not allowed", domain.ErrInvalidInput)
}

// capReader fails once more than remaining bytes have been read, so an
// oversized upload is never published.
type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, errOutputTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errOutputTooLarge
	}
	return n, err
}
