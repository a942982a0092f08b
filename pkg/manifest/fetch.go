// Package manifest fetches and parses the manifest a repository serves at
// {url}/manifest.json.
//
// Fetching never fails hard: the outcome is returned as a Result and folded
// into the repository record with Apply, so that one broken repository does
// not abort a command that consults several.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/spkg/pkg/repo"
)

// FileName is the manifest path relative to a repository URL.
const FileName = "manifest.json"

const maxManifestSize = 8 << 20

// Outcome tags a Result.
type Outcome int

const (
	OK Outcome = iota
	NetworkFailure
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NetworkFailure:
		return "network failure"
	default:
		return "malformed"
	}
}

// Manifest is a parsed manifest document.
type Manifest struct {
	Available []repo.Asset
	Error     string
	Extra     map[string]interface{}
}

// Result is the outcome of one fetch. Manifest is set only for OK; Message
// only for the failure outcomes.
type Result struct {
	Outcome  Outcome
	Manifest *Manifest
	Message  string
}

// Fetcher talks to repositories over HTTP.
type Fetcher struct {
	client *http.Client
	log    logrus.FieldLogger
}

// NewFetcher creates a Fetcher. A nil client gets a 30 second timeout.
func NewFetcher(client *http.Client, log logrus.FieldLogger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{
		client: client,
		log:    log.WithField("component", "manifest"),
	}
}

// Client returns the HTTP client used for all repository traffic.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch retrieves and parses the manifest of r.
func (f *Fetcher) Fetch(ctx context.Context, r repo.Repository) Result {
	target := r.Resolve(FileName)
	logger := f.log.WithFields(logrus.Fields{"repo": r.Name, "url": target})

	body, err := f.get(ctx, target, maxManifestSize)
	if err != nil {
		logger.WithError(err).Debug("Manifest fetch failed")
		return Result{Outcome: NetworkFailure, Message: err.Error()}
	}

	m, err := Parse(body)
	if err != nil {
		logger.WithError(err).Warn("Repository is misconfigured")
		return Result{Outcome: Malformed, Message: err.Error()}
	}

	logger.WithField("assets", len(m.Available)).Debug("Fetched manifest")
	return Result{Outcome: OK, Manifest: m}
}

// Refresh fetches the manifest of r and returns r annotated with the result.
func (f *Fetcher) Refresh(ctx context.Context, r repo.Repository) repo.Repository {
	return Apply(r, f.Fetch(ctx, r))
}

// RefreshAll refreshes each repository in turn.
func (f *Fetcher) RefreshAll(ctx context.Context, repos []repo.Repository) []repo.Repository {
	out := make([]repo.Repository, len(repos))
	for i, r := range repos {
		out[i] = f.Refresh(ctx, r)
	}
	return out
}

// FetchHeader returns the documentation fragment of a. Failures are returned
// as the text itself so callers can display it unconditionally.
func (f *Fetcher) FetchHeader(ctx context.Context, r repo.Repository, a repo.Asset) string {
	if a.Header == "" {
		return fmt.Sprintf("%s has no documentation header", a.Name())
	}

	body, err := f.get(ctx, r.Resolve(a.Header), maxManifestSize)
	if err != nil {
		return err.Error()
	}
	return string(body)
}

// Apply merges a fetch result into r.
func Apply(r repo.Repository, res Result) repo.Repository {
	switch res.Outcome {
	case OK:
		r.Available = res.Manifest.Available
		if r.Available == nil {
			r.Available = []repo.Asset{}
		}
		r.Meta = res.Manifest.Extra
		r.Err = ""
		r.State = repo.Ready
	case NetworkFailure:
		r.Available = []repo.Asset{}
		r.Err = res.Message
		r.State = repo.Unreachable
	default:
		r.Available = nil
		r.Err = res.Message
		r.State = repo.Misconfigured
	}
	return r
}

// Parse decodes a manifest document. It fails when the document is not a
// JSON object, lacks an available array, or carries an error field.
func Parse(data []byte) (*Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	m := &Manifest{}
	if raw, ok := fields["error"]; ok {
		if err := json.Unmarshal(raw, &m.Error); err != nil {
			return nil, fmt.Errorf("invalid manifest error field: %w", err)
		}
		if m.Error != "" {
			return nil, fmt.Errorf("repository reports: %s", m.Error)
		}
	}

	raw, ok := fields["available"]
	if !ok {
		return nil, fmt.Errorf("manifest has no available list")
	}
	if err := json.Unmarshal(raw, &m.Available); err != nil {
		return nil, fmt.Errorf("invalid available list: %w", err)
	}
	if m.Available == nil {
		return nil, fmt.Errorf("manifest has no available list")
	}

	for k, v := range fields {
		if k == "available" || k == "error" {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]interface{})
		}
		m.Extra[k] = val
	}

	return m, nil
}

func (f *Fetcher) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", target, resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
