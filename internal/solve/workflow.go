// Package solve turns a visitor's image selection into a solve request and keeps the outcome.
package solve

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/backend"
	"github.com/codeturtle/turtle-web/internal/config"
	"github.com/codeturtle/turtle-web/internal/models/dto"
	"github.com/codeturtle/turtle-web/internal/upload"
)

const (
	MsgNoImages      = "Please select at least one image file"
	MsgNoModel       = "Please choose a model"
	msgUnknown       = "Unknown error occurred"
	msgFailedRequest = "An error occurred while processing the images"
	errorPrefix      = "Error: "
)

// Solver sends a solve request. *backend.Client satisfies it.
type Solver interface {
	Solve(ctx context.Context, req backend.SolveRequest) (dto.SolveResponse, error)
}

var _ Solver = (*backend.Client)(nil)

// Options configures a Workflow.
type Options struct {
	// RequireModel makes a blank model a validation error.
	RequireModel bool
	// Models are the choices offered to the user; duplicate values are dropped.
	Models []config.ModelOption
}

// State is what the solve page renders.
type State struct {
	Loading bool
	Error   string
	Result  *dto.SolveResponse
}

// Workflow validates, submits and records one visitor's solves.
type Workflow struct {
	selection *upload.Selection
	solver    Solver
	opts      Options
	models    []config.ModelOption

	mu    sync.Mutex
	state State
}

// NewWorkflow binds a selection to a solver.
func NewWorkflow(selection *upload.Selection, solver Solver, opts Options) *Workflow {
	return &Workflow{
		selection: selection,
		solver:    solver,
		opts:      opts,
		models:    DedupeModels(opts.Models),
	}
}

// Models lists the model choices; the first one is the default.
func (w *Workflow) Models() []config.ModelOption {
	return append([]config.ModelOption(nil), w.models...)
}

// DefaultModel is the value preselected on the page, or "" when no models are configured.
func (w *Workflow) DefaultModel() string {
	if len(w.models) == 0 {
		return ""
	}
	return w.models[0].Value
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Reset clears error and result.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.state = State{}
	w.mu.Unlock()
}

// Submit validates the selection and, if it is valid, issues exactly one solve request.
// It returns the state after the attempt; Loading is cleared on every path.
func (w *Workflow) Submit(ctx context.Context, model, instructions string) (st State) {
	entries := w.selection.Entries()
	if len(entries) == 0 {
		return w.fail(MsgNoImages, false)
	}
	model = strings.TrimSpace(model)
	if w.opts.RequireModel && model == "" {
		return w.fail(MsgNoModel, false)
	}

	req := backend.SolveRequest{
		Images:                 make([]backend.Image, 0, len(entries)),
		Model:                  model,
		AdditionalInstructions: instructions,
	}
	for _, e := range entries {
		req.Images = append(req.Images, backend.Image{Name: e.DisplayName, ContentType: e.File.ContentType, Data: e.File.Data})
	}

	w.mu.Lock()
	w.state = State{Loading: true}
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.state.Loading = false
		st = w.state
		w.mu.Unlock()
	}()

	res, err := w.call(ctx, req)
	if err != nil {
		log.Error().Err(err).Int("images", len(req.Images)).Msg("[solve] request failed")
		return w.fail(backend.Message(err, msgFailedRequest), true)
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = res.Details
		}
		if msg == "" {
			msg = msgUnknown
		}
		return w.fail(msg, true)
	}

	w.mu.Lock()
	w.state.Error = ""
	w.state.Result = &res
	w.mu.Unlock()
	return State{}
}

// call shields the workflow from a panicking solver.
func (w *Workflow) call(ctx context.Context, req backend.SolveRequest) (res dto.SolveResponse, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("solve panicked: %v", p)
		}
	}()
	return w.solver.Solve(ctx, req)
}

// fail clears the result and records msg. Backend failures get the display prefix;
// local validation messages do not.
func (w *Workflow) fail(msg string, prefixed bool) State {
	if prefixed {
		msg = errorPrefix + msg
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Error = msg
	w.state.Result = nil
	return w.state
}

// DedupeModels drops options whose value was already offered, keeping the first label.
func DedupeModels(in []config.ModelOption) []config.ModelOption {
	seen := make(map[string]bool, len(in))
	out := make([]config.ModelOption, 0, len(in))
	for _, m := range in {
		if seen[m.Value] {
			log.Warn().Str("label", m.Label).Str("value", m.Value).Msg("[solve] dropping duplicate model value")
			continue
		}
		seen[m.Value] = true
		out = append(out, m)
	}
	return out
}
