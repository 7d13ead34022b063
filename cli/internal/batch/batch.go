// Package batch runs a manifest of diff requests concurrently against one
// engine, so repeated requests share its cache. Responses come back in
// manifest order regardless of completion order.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"revdiff/cli/internal/cache"
	"revdiff/cli/internal/diff"
	"revdiff/cli/internal/erruser"
	"revdiff/cli/internal/trace"
)

// Differ computes diffs. *engine.Engine implements it.
type Differ interface {
	ComputeFileDiff(ctx context.Context, path, oldRef, newRef string) (diff.Result, error)
	ComputeCompleteDiff(ctx context.Context, path, oldRef, newRef string) (diff.Result, error)
}

// Request is one manifest entry. Mode defaults to hunk.
type Request struct {
	ID   string     `yaml:"id" json:"id"`
	Path string     `yaml:"path" json:"path"`
	Mode cache.Mode `yaml:"mode" json:"mode"`
	Old  string     `yaml:"old" json:"old,omitempty"`
	New  string     `yaml:"new" json:"new,omitempty"`
}

// Manifest is the YAML document read by the batch command:
//
//	concurrency: 8
//	requests:
//	  - path: cli/main.go
//	    old: v1.0.0
//	    new: HEAD
//	  - id: full
//	    path: README.md
//	    mode: complete
//	    old: HEAD~1
//	    new: HEAD
type Manifest struct {
	Concurrency int       `yaml:"concurrency"`
	Requests    []Request `yaml:"requests"`
}

// Error is the serialized failure of one request.
type Error struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Response is the outcome of one request: Result on success, Error otherwise.
type Response struct {
	Request
	Result *diff.Result `json:"result,omitempty"`
	Stats  *diff.Stats  `json:"stats,omitempty"`
	Error  *Error       `json:"error,omitempty"`
}

// ParseManifest decodes and validates a manifest. Requests without an id get
// a random one; an unknown mode or a missing path is rejected.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, erruser.Wrap(erruser.ErrInvalidInput, "Invalid batch manifest.", err)
	}
	if m.Concurrency < 0 {
		return Manifest{}, erruser.Wrap(erruser.ErrInvalidInput, "Batch concurrency must be positive.", fmt.Errorf("concurrency %d", m.Concurrency))
	}
	seen := make(map[string]int, len(m.Requests))
	for i := range m.Requests {
		r := &m.Requests[i]
		if strings.TrimSpace(r.Path) == "" {
			return Manifest{}, erruser.Wrap(erruser.ErrInvalidInput, "Every batch request needs a path.", fmt.Errorf("request %d", i+1))
		}
		switch r.Mode {
		case "":
			r.Mode = cache.ModeHunk
		case cache.ModeHunk, cache.ModeComplete:
		default:
			return Manifest{}, erruser.Wrap(erruser.ErrInvalidInput, "Batch request mode must be hunk or complete.", fmt.Errorf("request %d: mode %q", i+1, r.Mode))
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if prev, ok := seen[r.ID]; ok {
			return Manifest{}, erruser.Wrap(erruser.ErrInvalidInput, "Batch request ids must be unique.", fmt.Errorf("requests %d and %d share id %q", prev+1, i+1, r.ID))
		}
		seen[r.ID] = i
	}
	return m, nil
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, erruser.Wrap(erruser.ErrInvalidInput, "Could not read batch manifest.", err)
	}
	return ParseManifest(data)
}

// Runner executes manifests.
type Runner struct {
	differ      Differ
	concurrency int
	tracer      *trace.Tracer
}

// NewRunner returns a Runner using d. concurrency applies when the manifest
// does not set one; values below 1 mean 1.
func NewRunner(d Differ, concurrency int, tracer *trace.Tracer) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{differ: d, concurrency: concurrency, tracer: tracer}
}

// Run executes every request of m and returns one response per request in
// manifest order. A failing request does not stop the others; once ctx is
// done, requests not yet started fail with the context error.
func (r *Runner) Run(ctx context.Context, m Manifest) []Response {
	limit := r.concurrency
	if m.Concurrency > 0 {
		limit = m.Concurrency
	}
	out := make([]Response, len(m.Requests))
	var g errgroup.Group
	g.SetLimit(limit)
	r.tracer.Event("batch start", "requests", len(m.Requests), "concurrency", limit)
	for i, req := range m.Requests {
		g.Go(func() error {
			out[i] = r.run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Runner) run(ctx context.Context, req Request) Response {
	resp := Response{Request: req}
	if err := ctx.Err(); err != nil {
		resp.Error = toError(err)
		return resp
	}
	var (
		res diff.Result
		err error
	)
	switch req.Mode {
	case cache.ModeComplete:
		res, err = r.differ.ComputeCompleteDiff(ctx, req.Path, req.Old, req.New)
	default:
		res, err = r.differ.ComputeFileDiff(ctx, req.Path, req.Old, req.New)
	}
	if err != nil {
		r.tracer.Event("batch request failed", "id", req.ID, "err", err)
		resp.Error = toError(err)
		return resp
	}
	stats := res.Stats()
	resp.Result = &res
	resp.Stats = &stats
	return resp
}

func toError(err error) *Error {
	e := &Error{Message: err.Error()}
	if kind := erruser.KindOf(err); kind != nil {
		e.Kind = kind.Error()
	}
	return e
}

// Failed counts responses that carry an error.
func Failed(responses []Response) int {
	n := 0
	for _, r := range responses {
		if r.Error != nil {
			n++
		}
	}
	return n
}

// WriteJSONLines writes one JSON object per response, in order.
func WriteJSONLines(w io.Writer, responses []Response) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range responses {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
