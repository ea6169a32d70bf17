package public

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/CaioWing/clientforge/internal/api/response"
	"github.com/CaioWing/clientforge/internal/domain"
	"github.com/CaioWing/clientforge/internal/imaging"
	"github.com/CaioWing/clientforge/internal/service"
	"github.com/CaioWing/clientforge/internal/storage"
)

// maxFormBytes covers two branding images, either of which may arrive
// base64 encoded, plus the text fields.
var maxFormBytes = int64(2*base64.StdEncoding.EncodedLen(imaging.MaxBytes)) + 1<<20

type BuildHandler struct {
	buildSvc    *service.BuildService
	jobSvc      *service.JobService
	artifactSvc *service.ArtifactService
	log         *slog.Logger
}

func NewBuildHandler(buildSvc *service.BuildService, jobSvc *service.JobService, artifactSvc *service.ArtifactService, log *slog.Logger) *BuildHandler {
	return &BuildHandler{buildSvc: buildSvc, jobSvc: jobSvc, artifactSvc: artifactSvc, log: log}
}

type jobView struct {
	Filename  string           `json:"filename"`
	JobID     string           `json:"job_id"`
	Status    domain.JobStatus `json:"status,omitempty"`
	Platform  domain.Platform  `json:"platform"`
	ShortID   string           `json:"short_id,omitempty"`
	Direction domain.Direction `json:"direction,omitempty"`
}

// Submit accepts the build option form and starts a remote build.
func (h *BuildHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		response.Error(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	opts, verr := parseOptions(r)
	if verr != nil {
		response.FromError(w, verr, "")
		return
	}

	icon, closeIcon := imageSource(r, "iconfile", "iconbase64")
	defer closeIcon()
	logo, closeLogo := imageSource(r, "logofile", "logobase64")
	defer closeLogo()

	job, err := h.buildSvc.Submit(r.Context(), service.BuildRequest{Options: opts, Icon: icon, Logo: logo})
	if err != nil {
		if errors.Is(err, domain.ErrUpstream) {
			h.log.Error("build submission not dispatched", "err", err)
		}
		response.FromError(w, err, "failed to start build")
		return
	}

	response.JSON(w, http.StatusAccepted, jobView{
		Filename: job.Filename,
		JobID:    job.ID.String(),
		Status:   job.Status,
		Platform: job.Platform,
	})
}

// imageSource prefers an uploaded file over the base64 field.
func imageSource(r *http.Request, fileField, dataField string) (service.ImageSource, func()) {
	if r.MultipartForm != nil {
		if file, _, err := r.FormFile(fileField); err == nil {
			return service.ImageSource{Reader: file}, func() { file.Close() }
		}
	}
	return service.ImageSource{DataURL: r.FormValue(dataField)}, func() {}
}

// Status reports a job's progress. Finished builds also carry the short id
// and direction the download page needs.
func (h *BuildHandler) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := service.ParseJobID(q.Get("job_id"))
	if err != nil {
		response.FromError(w, err, "")
		return
	}

	job, err := h.jobSvc.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "failed to get job")
		return
	}

	view := jobView{
		Filename: firstNonEmpty(q.Get("filename"), job.Filename),
		JobID:    job.ID.String(),
		Platform: domain.Platform(firstNonEmpty(q.Get("platform"), string(job.Platform))),
	}
	if job.Status == domain.JobStatusSuccess {
		view.ShortID = job.ShortID()
		view.Direction = job.Direction
	} else {
		view.Status = job.Status
	}
	response.JSON(w, http.StatusOK, view)
}

// Download streams a finished build output as an attachment.
func (h *BuildHandler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obj, err := h.artifactSvc.OpenBuildOutput(r.Context(), q.Get("job_id"), q.Get("filename"))
	if err != nil {
		response.FromError(w, err, "failed to open build output")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, obj.Name))
	serve(w, r, obj)
}

// Image serves a stored branding image inline.
func (h *BuildHandler) Image(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obj, err := h.artifactSvc.OpenImage(r.Context(), q.Get("job_id"), q.Get("filename"))
	if err != nil {
		response.FromError(w, err, "failed to open image")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, obj.Name))
	serve(w, r, obj)
}

func serve(w http.ResponseWriter, r *http.Request, obj *storage.Object) {
	http.ServeContent(w, r, obj.Name, obj.ModTime, obj)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
