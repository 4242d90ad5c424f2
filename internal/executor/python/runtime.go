// Package python bridges snippet execution to an externally supplied
// Python interpreter runtime.
//
// The interpreter itself lives behind the Runtime interface. Backends in the
// wasm and docker subpackages implement it; the Adapter in this package owns
// the per-run output buffer, the module resolver and the one-run-at-a-time
// rule.
package python

import (
	"context"
	"io/fs"
)

// Dialect selects the language level the interpreter should accept.
type Dialect int

const (
	// Python3 is the only dialect snippets are run under.
	Python3 Dialect = 3
)

// ProgramName is the file name tracebacks report for the main program.
const ProgramName = "<string>"

// Options configures a Runtime before a run.
type Options struct {
	// Output receives stdout chunks as the program produces them.
	Output func(chunk string)
	// Modules resolves import paths. Misses surface as *ModuleNotFoundError.
	Modules fs.FS
	Dialect Dialect
}

// Program is the main module handed to RunMain.
type Program struct {
	Name   string
	Source string
}

// Runtime is an embedded Python interpreter.
//
// Configure is always called immediately before RunMain, and the pair is never
// interleaved with another run on the same Runtime.
type Runtime interface {
	Configure(opts Options) error
	// RunMain blocks until the program finishes. A program that raised returns
	// an *InterpreterError; cancellation returns ctx.Err() (possibly wrapped).
	RunMain(ctx context.Context, prog Program) error
}
