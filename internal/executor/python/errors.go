package python

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
)

// InterpreterError is a Python exception that escaped the main program.
type InterpreterError struct {
	// Message is the final traceback line, e.g. "NameError: name 'x' is not defined".
	Message string
	// Line is the line in the main program the traceback points at, or 0.
	Line int
	// Traceback is the raw stderr text the message was taken from.
	Traceback string
}

func (e *InterpreterError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s on line %d", e.Message, e.Line)
	}
	return e.Message
}

var frameRe = regexp.MustCompile(`File "([^"]*)", line (\d+)`)

// ParseTraceback builds an InterpreterError from interpreter stderr. The line
// is taken from the innermost frame that belongs to the program named file.
func ParseTraceback(stderr, file string) *InterpreterError {
	ierr := &InterpreterError{Traceback: stderr}

	lines := strings.Split(strings.TrimRight(stderr, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if msg := strings.TrimSpace(lines[i]); msg != "" {
			ierr.Message = msg
			break
		}
	}
	if ierr.Message == "" {
		ierr.Message = "Python interpreter failed without a traceback"
	}

	for _, m := range frameRe.FindAllStringSubmatch(stderr, -1) {
		if m[1] != file {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil {
			ierr.Line = n
		}
	}
	return ierr
}

// ModuleNotFoundError is returned by the module resolver for import paths it
// cannot serve.
type ModuleNotFoundError struct {
	Name string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("File not found: '%s'", e.Name)
}

// Unwrap lets callers match the error with fs.ErrNotExist.
func (e *ModuleNotFoundError) Unwrap() error {
	return fs.ErrNotExist
}

// resolverFS serves modules from an optional backing FS and reports every
// miss as a ModuleNotFoundError.
type resolverFS struct {
	base fs.FS
}

func (r resolverFS) Open(name string) (fs.File, error) {
	if r.base == nil || !fs.ValidPath(name) {
		return nil, &ModuleNotFoundError{Name: name}
	}
	f, err := r.base.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ModuleNotFoundError{Name: name}
		}
		return nil, err
	}
	return f, nil
}
