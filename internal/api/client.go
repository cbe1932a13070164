// Package api talks to the recording server that archives exported
// sessions.
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fpsframework/firearm/pkg/core"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/api/v1/sessions/add"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	// Body holds the start of the response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Op, e.Code, e.Body)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Healthcheck reports whether the server answers on its health endpoint.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "healthcheck")
}

// Upload posts a recording with its session summary as a multipart form.
// The body is streamed, so large exports are never held in memory.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer file.Close()

	name := filepath.Base(filePath)
	fields := []formField{
		{"secret", c.apiKey},
		{"filename", name},
		{"sessionName", meta.SessionName},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
		{"shots", strconv.Itoa(meta.Shots)},
		{"hits", strconv.Itoa(meta.Hits)},
		{"tag", meta.Tag},
		{"compressed", strconv.FormatBool(strings.HasSuffix(name, ".gz"))},
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, fields, name, file))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(req, "upload")
}

type formField struct {
	name, value string
}

// writeForm writes the fields, then the file part, then the closing
// boundary.
func writeForm(w *multipart.Writer, fields []formField, fileName string, file io.Reader) error {
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy recording: %w", err)
	}
	return w.Close()
}

func (c *Client) do(req *http.Request, op string) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
