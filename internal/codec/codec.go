// Package codec turns a validated build option set into the payload the
// external builder consumes: a base64-wrapped settings document plus a plain
// JSON extras document.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CaioWing/clientforge/internal/domain"
)

// Defaults fills server and branding fields the submitter left empty.
type Defaults struct {
	ServerHost   string
	Key          string
	URLLink      string
	DownloadLink string
	CompanyName  string
	// APIPort is appended to the server host when no API server is given.
	APIPort string
}

type Encoder struct {
	defaults    Defaults
	genURL      string
	uploadToken string
}

func NewEncoder(defaults Defaults, genURL, uploadToken string) *Encoder {
	if defaults.APIPort == "" {
		defaults.APIPort = "21114"
	}
	return &Encoder{defaults: defaults, genURL: genURL, uploadToken: uploadToken}
}

// ServerConfig identifies the rendezvous server the client is built against.
type ServerConfig struct {
	Host      string
	Key       string
	APIServer string
}

// Payload is everything derived from one option set.
type Payload struct {
	Filename   string
	AppName    string
	Platform   domain.Platform
	Direction  domain.Direction
	Server     ServerConfig
	Descriptor *Descriptor
	// Custom is the base64 encoding of the JSON descriptor.
	Custom string
	// Extras is a JSON document, not further encoded.
	Extras string
}

// Extras carries UI and behavior toggles that are not part of the settings
// document.
type Extras struct {
	GenURL                 string `json:"genurl"`
	URLLink                string `json:"urlLink"`
	DownloadLink           string `json:"downloadLink"`
	DelayFix               bool   `json:"delayFix"`
	Version                string `json:"version"`
	GDPro                  string `json:"gdpro"`
	CycleMonitor           bool   `json:"cycleMonitor"`
	XOffline               bool   `json:"xOffline"`
	RemoveNewVersionNotif  bool   `json:"removeNewVersionNotif"`
	HidePassword           bool   `json:"hidePassword"`
	HideMenuBar            bool   `json:"hideMenuBar"`
	RemoveTopNotice        bool   `json:"removeTopNotice"`
	PasswordSecurityLength bool   `json:"password_security_length"`
	CompanyName            string `json:"compname"`
	UploadToken            string `json:"upload_token"`
}

// Encode never fails for well-typed options; out-of-range text fields fall
// back to documented defaults.
func (e *Encoder) Encode(opts Options) (*Payload, error) {
	filename := SanitizeFilename(opts.ExeName)
	appName := SanitizeAppName(opts.AppName)

	desc := BuildDescriptor(opts, appName)
	custom, err := EncodeDescriptor(desc)
	if err != nil {
		return nil, err
	}

	extras, err := marshal(e.extras(opts))
	if err != nil {
		return nil, fmt.Errorf("marshal extras: %w", err)
	}

	return &Payload{
		Filename:   filename,
		AppName:    appName,
		Platform:   opts.Platform,
		Direction:  opts.Direction,
		Server:     e.server(opts),
		Descriptor: desc,
		Custom:     custom,
		Extras:     string(extras),
	}, nil
}

func (e *Encoder) server(opts Options) ServerConfig {
	host := firstNonEmpty(opts.ServerHost, e.defaults.ServerHost)
	return ServerConfig{
		Host:      host,
		Key:       firstNonEmpty(opts.Key, e.defaults.Key),
		APIServer: firstNonEmpty(opts.APIServer, host+":"+e.defaults.APIPort),
	}
}

func (e *Encoder) extras(opts Options) Extras {
	return Extras{
		GenURL:                 e.genURL,
		URLLink:                firstNonEmpty(opts.URLLink, e.defaults.URLLink),
		DownloadLink:           firstNonEmpty(opts.DownloadLink, e.defaults.DownloadLink),
		DelayFix:               opts.DelayFix,
		Version:                opts.Version,
		GDPro:                  "true",
		CycleMonitor:           opts.CycleMonitor,
		XOffline:               opts.XOffline,
		RemoveNewVersionNotif:  opts.RemoveNewVersionNotif,
		HidePassword:           opts.HidePassword,
		HideMenuBar:            opts.HideMenuBar,
		RemoveTopNotice:        opts.RemoveTopNotice,
		PasswordSecurityLength: opts.PasswordSecurityLength,
		CompanyName:            strings.ReplaceAll(firstNonEmpty(opts.CompanyName, e.defaults.CompanyName), "&", `\&`),
		UploadToken:            e.uploadToken,
	}
}

// EncodeDescriptor serializes d to JSON and wraps it in standard base64.
// Map keys are emitted in sorted order, so equal descriptors encode to
// equal payloads.
func EncodeDescriptor(d *Descriptor) (string, error) {
	raw, err := marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal descriptor: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeDescriptor reverses EncodeDescriptor.
func DecodeDescriptor(payload string) (*Descriptor, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", domain.ErrInvalidInput, err)
	}
	d := &Descriptor{}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("%w: payload is not a descriptor: %v", domain.ErrInvalidInput, err)
	}
	if d.DefaultSettings == nil {
		d.DefaultSettings = Settings{}
	}
	if d.OverrideSettings == nil {
		d.OverrideSettings = Settings{}
	}
	return d, nil
}

// marshal is json.Marshal without HTML escaping, so values such as the
// company name reach the builder unchanged.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
