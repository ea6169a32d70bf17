// Package pipeline serves the endpoints the build pipeline and third-party
// triggers call back into.
package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/api/middleware"
	"github.com/CaioWing/clientforge/internal/api/response"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/imaging"
	"github.com/CaioWing/clientforge/internal/service"
)

// uploadOverhead allows for multipart framing and the text fields.
const uploadOverhead = 1 << 20

// maxImageUpload fits one image sent either as a file or base64 encoded.
var maxImageUpload = int64(base64.StdEncoding.EncodedLen(imaging.MaxBytes)) + uploadOverhead

type Handler struct {
	jobSvc      *service.JobService
	artifactSvc *service.ArtifactService
	buildSvc    *service.BuildService
	auditSvc    *service.AuditService
	maxUpload   int64
	log         *slog.Logger
}

func NewHandler(
	jobSvc *service.JobService,
	artifactSvc *service.ArtifactService,
	buildSvc *service.BuildService,
	auditSvc *service.AuditService,
	maxOutputBytes int64,
	log *slog.Logger,
) *Handler {
	if maxOutputBytes <= 0 {
		maxOutputBytes = service.DefaultMaxOutputBytes
	}
	return &Handler{
		jobSvc:      jobSvc,
		artifactSvc: artifactSvc,
		buildSvc:    buildSvc,
		auditSvc:    auditSvc,
		maxUpload:   maxOutputBytes + uploadOverhead,
		log:         log,
	}
}

type callbackRequest struct {
	JobID  string           `json:"job_id"`
	UUID   string           `json:"uuid"`
	Status domain.JobStatus `json:"status"`
}

// Callback records the outcome the build pipeline reports for a job.
// Reports that change nothing still get an empty 200 so the sender stops
// retrying.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rawID := req.JobID
	if rawID == "" {
		rawID = req.UUID
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid job id")
		return
	}

	applied, err := h.jobSvc.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		response.FromError(w, err, "failed to update job")
		return
	}
	if applied {
		h.auditSvc.Log(r.Context(), &domain.AuditEntry{
			Actor:      middleware.Actor(r.Context()),
			ActorType:  domain.ActorTypeCI,
			Action:     service.ActionJobCallback,
			Resource:   "job",
			ResourceID: id.String(),
			IPAddress:  r.RemoteAddr,
			Details:    map[string]any{"status": req.Status},
		})
	}
	w.WriteHeader(http.StatusOK)
}

// UploadArtifact ingests a finished binary. The shared upload token may be
// sent as a form field or as a bearer token.
func (h *Handler) UploadArtifact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		response.Error(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	token := r.FormValue("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}

	rawID := r.FormValue("job_id")
	if rawID == "" {
		rawID = r.FormValue("uuid")
	}
	id, err := service.ParseJobID(rawID)
	if err != nil {
		response.FromError(w, err, "")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	size, err := h.artifactSvc.StoreBuildOutput(r.Context(), id, header.Filename, file, token)
	if err != nil {
		response.FromError(w, err, "failed to store build output")
		return
	}

	h.auditSvc.Log(r.Context(), &domain.AuditEntry{
		Actor:      "pipeline",
		ActorType:  domain.ActorTypeCI,
		Action:     service.ActionOutputUploaded,
		Resource:   "artifact",
		ResourceID: id.String(),
		IPAddress:  r.RemoteAddr,
		Details:    map[string]any{"file": header.Filename, "size": size},
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// UploadImage replaces a job's icon or logo. The image goes through the same
// validation and re-encoding as images sent with the build form.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageUpload)
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		response.Error(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	rawID := r.FormValue("job_id")
	if rawID == "" {
		rawID = r.FormValue("uuid")
	}
	id, err := service.ParseJobID(rawID)
	if err != nil {
		response.FromError(w, err, "")
		return
	}

	src := service.ImageSource{DataURL: r.FormValue("base64")}
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		src = service.ImageSource{Reader: file}
	}

	slot := service.ImageSlot(r.FormValue("slot"))
	ref, err := h.artifactSvc.StoreImage(r.Context(), id, slot, src)
	if err != nil {
		response.FromError(w, err, "failed to store image")
		return
	}

	h.auditSvc.Log(r.Context(), &domain.AuditEntry{
		Actor:      middleware.Actor(r.Context()),
		ActorType:  domain.ActorTypeCI,
		Action:     service.ActionImageUploaded,
		Resource:   "image",
		ResourceID: id.String(),
		IPAddress:  r.RemoteAddr,
		Details:    map[string]any{"slot": slot},
	})
	response.JSON(w, http.StatusOK, ref)
}

type triggerRequest struct {
	Platform domain.Platform   `json:"platform"`
	Ref      string            `json:"ref"`
	Inputs   map[string]string `json:"inputs"`
}

// Trigger forwards a third-party build request to the pipeline without
// recording a job.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.buildSvc.TriggerExternal(r.Context(), req.Platform, req.Ref, req.Inputs); err != nil {
		h.log.Warn("external trigger failed", "platform", req.Platform, "err", err)
		response.FromError(w, err, "failed to trigger build")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
