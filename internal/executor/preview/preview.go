// Package preview hands HTML/CSS snippets to an isolated rendering surface.
package preview

import (
	"context"

	"github.com/sakif/snippet-runner/internal/executor"
)

// Renderer passes markup through untouched. Isolation is the job of the
// surface that displays it.
type Renderer struct{}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{}
}

var _ executor.Executor = (*Renderer)(nil)

// Run wraps code in a preview result.
func (r *Renderer) Run(code string) executor.ExecutionResult {
	return executor.ExecutionResult{Kind: executor.KindPreview, Content: code}
}

// Execute implements executor.Executor.
func (r *Renderer) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	res := r.Run(req.Code)
	return &res, nil
}
