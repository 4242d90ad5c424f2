// Package executor defines the request/result types shared by every snippet
// executor and the closed set of languages the engine knows how to run.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExecutionRequest represents a request to run a snippet.
// Language is the free-form tag attached to the snippet (e.g. "js", "Python").
type ExecutionRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Kind says how a result should be displayed.
type Kind string

const (
	// KindConsole results hold newline-joined log text.
	KindConsole Kind = "console"
	// KindPreview results hold raw markup for an isolated rendering surface.
	KindPreview Kind = "preview"
)

// ErrorKind classifies what went wrong during a run. It is empty on success.
type ErrorKind string

const (
	ErrorConfiguration ErrorKind = "configuration"
	ErrorSyntax        ErrorKind = "syntax"
	ErrorRuntime       ErrorKind = "runtime"
	ErrorInterpreter   ErrorKind = "interpreter"
	ErrorUnsupported   ErrorKind = "unsupported"
	ErrorTimeout       ErrorKind = "timeout"
)

// ExecutionResult is the uniform outcome of running a snippet.
type ExecutionResult struct {
	Kind      Kind          `json:"kind"`
	Content   string        `json:"content"`
	IsError   bool          `json:"isError"`
	ErrorKind ErrorKind     `json:"errorKind,omitempty"`
	RunID     string        `json:"runId,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Console builds a console result.
func Console(content string, isError bool) ExecutionResult {
	return ExecutionResult{Kind: KindConsole, Content: content, IsError: isError}
}

// Executor runs a snippet in an isolated environment.
//
// Implementations report snippet failures inside the result; the error return
// is reserved for failures of the executor itself.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// Language is the closed set of languages the engine dispatches on.
type Language int

const (
	Unsupported Language = iota
	JavaScript
	Python
	HTMLCSS
)

func (l Language) String() string {
	switch l {
	case JavaScript:
		return "javascript"
	case Python:
		return "python"
	case HTMLCSS:
		return "html/css"
	default:
		return "unsupported"
	}
}

// ParseLanguage normalizes a language tag and resolves its aliases.
// Unknown tags map to Unsupported.
func ParseLanguage(tag string) Language {
	switch NormalizeTag(tag) {
	case "javascript", "js":
		return JavaScript
	case "python", "py":
		return Python
	case "html", "css", "html/css":
		return HTMLCSS
	default:
		return Unsupported
	}
}

// NormalizeTag trims and lower-cases a language tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// UnsupportedMessage is the neutral message shown for languages with no executor.
func UnsupportedMessage(tag string) string {
	return fmt.Sprintf("Execution for %s is not supported in this preview.", strings.TrimSpace(tag))
}
