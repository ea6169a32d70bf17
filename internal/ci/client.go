// Package ci triggers remote build workflows on GitHub Actions through the
// workflow_dispatch endpoint.
package ci

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CaioWing/clientforge/internal/domain"
)

const (
	DefaultAPIBase = "https://api.github.com"
	DefaultRef     = "master"
	DefaultTimeout = 15 * time.Second

	apiVersion = "2022-11-28"
	// upstream bodies are only read for logging
	maxErrorBody = 64 << 10
)

var workflows = map[domain.Platform]string{
	domain.PlatformWindows64: "generator-windows.yml",
	domain.PlatformWindows32: "generator-windows-x86.yml",
	domain.PlatformLinux:     "generator-linux.yml",
	domain.PlatformAndroid:   "generator-android.yml",
	domain.PlatformMacOS:     "generator-macos.yml",
}

// WorkflowFile returns the workflow that builds clients for p.
func WorkflowFile(p domain.Platform) (string, error) {
	wf, ok := workflows[p]
	if !ok {
		return "", fmt.Errorf("%w: unsupported platform %q", domain.ErrInvalidInput, p)
	}
	return wf, nil
}

type Config struct {
	APIBase string
	Owner   string
	Repo    string
	Ref     string
	Token   string
	Timeout time.Duration
}

// Error is returned when GitHub answers a dispatch with a non-2xx status.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("workflow dispatch rejected with status %d", e.StatusCode)
}

func (e *Error) Unwrap() error {
	return domain.ErrUpstream
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Ref == "" {
		cfg.Ref = DefaultRef
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type dispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs"`
}

// Dispatch triggers the workflow for platform. An empty ref uses the
// configured default branch. A nil error only means GitHub accepted the
// trigger; the build itself reports back through the callback endpoint.
func (c *Client) Dispatch(ctx context.Context, platform domain.Platform, ref string, inputs map[string]string) error {
	wf, err := WorkflowFile(platform)
	if err != nil {
		return err
	}
	if ref == "" {
		ref = c.cfg.Ref
	}
	if inputs == nil {
		inputs = map[string]string{}
	}

	body, err := json.Marshal(dispatchRequest{Ref: ref, Inputs: inputs})
	if err != nil {
		return fmt.Errorf("marshal dispatch: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/dispatches",
		strings.TrimRight(c.cfg.APIBase, "/"),
		url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo), url.PathEscape(wf))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("workflow dispatch timed out", "workflow", wf, "timeout", c.cfg.Timeout)
		} else {
			c.logger.Error("workflow dispatch failed", "workflow", wf, "error", err)
		}
		return fmt.Errorf("%w: dispatch %s: %v", domain.ErrUpstream, wf, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Info("workflow dispatched",
			"workflow", wf,
			"ref", ref,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Error("workflow dispatch rejected",
		"workflow", wf,
		"status", resp.StatusCode,
		"body", string(raw),
	)
	return &Error{StatusCode: resp.StatusCode, Body: string(raw)}
}
