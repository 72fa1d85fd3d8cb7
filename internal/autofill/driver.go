// Package autofill drives a browser-automation session to prefill an
// application form. The orchestrator stops at ready-for-review: no submit
// capability exists anywhere in this package, submission is always a human
// action in the browser.
package autofill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrAutomationUnavailable means no browser session could be acquired. The
// application attempt fails cleanly with no state transition.
var ErrAutomationUnavailable = errors.New("browser automation unavailable")

// Question is one form question the automation found outside the profile
// field mappings.
type Question struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Options  []string `json:"options,omitempty"`
	Answered bool     `json:"answered"`
}

// Driver is the capability the orchestrator needs from a browser-automation
// backend. Deliberately narrow: there is no submit method.
type Driver interface {
	// Open acquires a session and navigates to the given URL.
	Open(ctx context.Context, url string) error
	// Fill writes a value into the first element matching the selector.
	Fill(ctx context.Context, selector, value string) error
	// Upload attaches a local file to the file input matching the selector.
	Upload(ctx context.Context, selector, path string) error
	// ReadQuestions lists the open-text and select questions on the form.
	ReadQuestions(ctx context.Context) ([]Question, error)
	// Answer fills the question identified by ReadQuestions.
	Answer(ctx context.Context, questionID, value string) error
	// Release tears the session down. Safe to call after a failed Open.
	Release(ctx context.Context) error
}

// RemoteDriver talks to a local browser-automation sidecar over HTTP.
type RemoteDriver struct {
	baseURL string
	http    *http.Client
}

func NewRemoteDriver(baseURL string, timeout time.Duration) *RemoteDriver {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteDriver{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (d *RemoteDriver) Open(ctx context.Context, url string) error {
	if err := d.post(ctx, "/session/open", map[string]any{"url": url}, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrAutomationUnavailable, err)
	}
	return nil
}

func (d *RemoteDriver) Fill(ctx context.Context, selector, value string) error {
	return d.post(ctx, "/session/fill", map[string]any{
		"selector": selector,
		"value":    value,
	}, nil)
}

func (d *RemoteDriver) Upload(ctx context.Context, selector, path string) error {
	return d.post(ctx, "/session/upload", map[string]any{
		"selector": selector,
		"path":     path,
	}, nil)
}

func (d *RemoteDriver) ReadQuestions(ctx context.Context) ([]Question, error) {
	var out struct {
		Questions []Question `json:"questions"`
	}
	if err := d.post(ctx, "/session/questions", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (d *RemoteDriver) Answer(ctx context.Context, questionID, value string) error {
	return d.post(ctx, "/session/answer", map[string]any{
		"question_id": questionID,
		"value":       value,
	}, nil)
}

func (d *RemoteDriver) Release(ctx context.Context) error {
	return d.post(ctx, "/session/release", map[string]any{}, nil)
}

func (d *RemoteDriver) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("automation sidecar %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("automation sidecar %s: status %d: %s", path, resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
