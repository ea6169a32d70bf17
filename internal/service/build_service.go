package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/ci"
	"github.com/CaioWing/clientforge/internal/codec"
	"github.com/CaioWing/clientforge/internal/domain"
)

// Dispatcher triggers a remote build. A nil error means the trigger was
// accepted, not that the build succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, platform domain.Platform, ref string, inputs map[string]string) error
}

type BuildRequest struct {
	Options codec.Options
	Icon    ImageSource
	Logo    ImageSource
}

type BuildService struct {
	encoder    *codec.Encoder
	jobs       *JobService
	artifacts  *ArtifactService
	dispatcher Dispatcher
	log        *slog.Logger
}

func NewBuildService(encoder *codec.Encoder, jobs *JobService, artifacts *ArtifactService, dispatcher Dispatcher, log *slog.Logger) *BuildService {
	return &BuildService{
		encoder:    encoder,
		jobs:       jobs,
		artifacts:  artifacts,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Submit encodes the options, records a job, stores branding images and
// triggers the remote build. If the trigger is not accepted the job is
// marked Failed and the returned error wraps domain.ErrUpstream.
func (s *BuildService) Submit(ctx context.Context, req BuildRequest) (*domain.BuildJob, error) {
	verr := domain.NewValidationError()
	if !req.Options.Platform.Valid() {
		verr.Add("platform", "unsupported platform")
	}
	if !req.Options.Direction.Valid() {
		verr.Add("direction", "unsupported connection direction")
	}

	// images are validated before any job exists so a bad upload leaves
	// nothing behind
	icon := s.prepare(req.Icon, "iconfile", verr)
	logo := s.prepare(req.Logo, "logofile", verr)
	if verr.HasErrors() {
		return nil, verr
	}

	payload, err := s.encoder.Encode(req.Options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	job, err := s.jobs.Create(ctx, payload.Filename, payload.Direction, payload.Platform)
	if err != nil {
		return nil, err
	}

	iconRef, err := s.store(job.ID, SlotIcon, icon)
	if err != nil {
		s.jobs.fail(ctx, job.ID, "icon storage failed")
		return nil, err
	}
	logoRef, err := s.store(job.ID, SlotLogo, logo)
	if err != nil {
		s.jobs.fail(ctx, job.ID, "logo storage failed")
		return nil, err
	}

	inputs := ci.BuildInputs(job.ID, payload, iconRef, logoRef)

	// a client disconnect must not abort a trigger that may already be in
	// flight upstream
	dispatchCtx := context.WithoutCancel(ctx)
	if err := s.dispatcher.Dispatch(dispatchCtx, payload.Platform, "", inputs); err != nil {
		s.jobs.fail(dispatchCtx, job.ID, "dispatch rejected")
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		return nil, fmt.Errorf("dispatch job %s: %w", job.ID, err)
	}

	s.log.Info("build dispatched", "id", job.ID, "platform", job.Platform, "filename", job.Filename)
	return job, nil
}

func (s *BuildService) prepare(src ImageSource, field string, verr *domain.ValidationError) []byte {
	if src.empty() {
		return nil
	}
	data, err := s.artifacts.PrepareImage(src)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			verr.Add(field, "must be a valid image no larger than the upload limit")
		} else {
			verr.Add(field, "could not be read")
		}
		s.log.Warn("branding image rejected", "field", field, "err", err)
		return nil
	}
	return data
}

func (s *BuildService) store(jobID uuid.UUID, slot ImageSlot, png []byte) (*ci.ImageRef, error) {
	if png == nil {
		return nil, nil
	}
	return s.artifacts.saveImage(jobID, slot, png)
}

// TriggerExternal forwards a third-party trigger straight to the build
// pipeline. No job is recorded.
func (s *BuildService) TriggerExternal(ctx context.Context, platform domain.Platform, ref string, inputs map[string]string) error {
	if !platform.Valid() {
		verr := domain.NewValidationError()
		verr.Add("platform", "unsupported platform")
		return verr
	}
	if err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), platform, ref, inputs); err != nil {
		return fmt.Errorf("external trigger: %w", err)
	}
	s.log.Info("external build triggered", "platform", platform, "ref", ref)
	return nil
}
