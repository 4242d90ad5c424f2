// Package javascript runs JavaScript snippets in a fresh goja VM with a mock
// console as the only binding handed to the snippet.
package javascript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/sakif/snippet-runner/internal/executor"
)

// NoOutputMessage is reported when a snippet finishes without logging anything.
const NoOutputMessage = "Code executed successfully (no output)."

const snippetFile = "snippet.js"

// wrapPrefix puts the snippet body on its own line inside the wrapper
// function; wrapLineOffset is the number of lines it adds.
const (
	wrapPrefix     = "(function (console) {\n"
	wrapSuffix     = "\n})"
	wrapLineOffset = 1
)

const errorMessageSource = `(function (e) {
	if (e !== null && typeof e === "object" && e.message !== undefined) return String(e.message);
	return String(e);
})`

var (
	errTimeout = errors.New("execution timed out")

	lineRe = regexp.MustCompile(`Line (\d+):(\d+)`)
)

// Config holds the limits applied to every JavaScript run.
type Config struct {
	// Timeout is the wall-clock budget for a run. Zero disables it.
	Timeout time.Duration
	// MaxCallStackSize bounds recursion depth inside the VM.
	MaxCallStackSize int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1000,
	}
}

// Executor runs JavaScript snippets.
type Executor struct {
	config Config
	logger *slog.Logger
}

// New creates a JavaScript Executor.
func New(cfg Config, logger *slog.Logger) *Executor {
	return &Executor{config: cfg, logger: logger}
}

var _ executor.Executor = (*Executor)(nil)

// Execute implements executor.Executor. It never returns an error.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	res := e.Run(ctx, req.Code)
	return &res, nil
}

// Run executes code and returns its console output.
func (e *Executor) Run(ctx context.Context, code string) (result executor.ExecutionResult) {
	vm := goja.New()
	if e.config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(e.config.MaxCallStackSize)
	}

	ser := NewSerializer(vm)
	errMessage := mustCallable(vm, errorMessageSource)
	con := newConsole(ser)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("javascript executor panicked", slog.Any("panic", r))
			con.append(fmt.Sprintf("Error: %v", r))
			result = e.finish(con, executor.ErrorRuntime, true)
		}
	}()

	program, err := goja.Compile(snippetFile, wrapPrefix+code+wrapSuffix, false)
	if err != nil {
		con.append("Syntax Error: " + compileMessage(err))
		return e.finish(con, executor.ErrorSyntax, false)
	}

	if e.config.Timeout > 0 {
		timer := time.AfterFunc(e.config.Timeout, func() { vm.Interrupt(errTimeout) })
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	fnValue, err := vm.RunProgram(program)
	if err == nil {
		fn, ok := goja.AssertFunction(fnValue)
		if !ok {
			con.append("Syntax Error: snippet did not compile to a function")
			return e.finish(con, executor.ErrorSyntax, false)
		}
		_, err = fn(goja.Undefined(), con.bind(vm))
	}
	if err == nil {
		return e.finish(con, "", false)
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok && !errors.Is(cause, errTimeout) {
			con.append("Error: Execution cancelled: " + cause.Error())
			return e.finish(con, executor.ErrorTimeout, true)
		}
		con.append(fmt.Sprintf("Error: Execution timed out after %s", e.config.Timeout))
		return e.finish(con, executor.ErrorTimeout, true)
	}

	var exception *goja.Exception
	if errors.As(err, &exception) && errMessage != nil {
		msg, callErr := errMessage(goja.Undefined(), exception.Value())
		if callErr == nil {
			con.append("Error: " + msg.String())
			return e.finish(con, executor.ErrorRuntime, false)
		}
	}

	con.append("Error: " + err.Error())
	return e.finish(con, executor.ErrorRuntime, false)
}

func (e *Executor) finish(con *console, kind executor.ErrorKind, isError bool) executor.ExecutionResult {
	lines := con.lines
	if len(lines) == 0 {
		lines = []string{NoOutputMessage}
	}
	res := executor.Console(strings.Join(lines, "\n"), isError)
	res.ErrorKind = kind
	return res
}

// compileMessage strips goja's error prefixes and maps line numbers back to
// the snippet as written.
func compileMessage(err error) string {
	msg := err.Error()
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		msg = syntaxErr.Message
	}
	msg = strings.TrimPrefix(msg, "SyntaxError: ")
	msg = strings.TrimPrefix(msg, "ReferenceError: ")
	msg = strings.TrimPrefix(msg, snippetFile+": ")
	return lineRe.ReplaceAllStringFunc(msg, func(m string) string {
		parts := lineRe.FindStringSubmatch(m)
		line, _ := strconv.Atoi(parts[1])
		if line > wrapLineOffset {
			line -= wrapLineOffset
		}
		return fmt.Sprintf("Line %d:%s", line, parts[2])
	})
}

func mustCallable(vm *goja.Runtime, src string) goja.Callable {
	v, err := vm.RunString(src)
	if err != nil {
		return nil
	}
	fn, _ := goja.AssertFunction(v)
	return fn
}
