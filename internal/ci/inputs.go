package ci

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/CaioWing/clientforge/internal/codec"
)

// ImageRef tells the workflow where to fetch a stored branding image.
type ImageRef struct {
	URL  string `json:"url"`
	UUID string `json:"uuid"`
	File string `json:"file"`
}

// BuildInputs assembles the workflow_dispatch inputs for one job. Absent
// images are sent as the literal string "null".
func BuildInputs(jobID uuid.UUID, p *codec.Payload, icon, logo *ImageRef) map[string]string {
	return map[string]string{
		"server":    p.Server.Host,
		"key":       p.Server.Key,
		"apiServer": p.Server.APIServer,
		"custom":    p.Custom,
		"uuid":      jobID.String(),
		"iconlink":  imageInput(icon),
		"logolink":  imageInput(logo),
		"appname":   p.AppName,
		"extras":    p.Extras,
		"filename":  p.Filename,
	}
}

func imageInput(ref *ImageRef) string {
	if ref == nil {
		return "null"
	}
	b, err := json.Marshal(ref)
	if err != nil {
		return "null"
	}
	return string(b)
}
