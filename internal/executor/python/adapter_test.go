package python_test

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sakif/snippet-runner/internal/executor"
	"github.com/sakif/snippet-runner/internal/executor/python"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime stands in for an interpreter. run decides what the program does.
type fakeRuntime struct {
	opts       python.Options
	configured int
	run        func(ctx context.Context, opts python.Options, prog python.Program) error
}

func (f *fakeRuntime) Configure(opts python.Options) error {
	f.configured++
	f.opts = opts
	return nil
}

func (f *fakeRuntime) RunMain(ctx context.Context, prog python.Program) error {
	return f.run(ctx, f.opts, prog)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAdapter_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("missing runtime", func(t *testing.T) {
		a := python.NewAdapter(nil, python.Config{}, testLogger())
		res := a.Run(ctx, `print("hi")`)

		assert.Equal(t, executor.KindConsole, res.Kind)
		assert.True(t, res.IsError)
		assert.Equal(t, executor.ErrorConfiguration, res.ErrorKind)
		assert.Equal(t, python.NotLoadedMessage, res.Content)
		assert.False(t, a.Available())
	})

	t.Run("printed output", func(t *testing.T) {
		rt := &fakeRuntime{run: func(_ context.Context, opts python.Options, prog python.Program) error {
			assert.Equal(t, python.ProgramName, prog.Name)
			assert.Equal(t, python.Python3, opts.Dialect)
			opts.Output("hello\n")
			opts.Output("world\n")
			return nil
		}}
		a := python.NewAdapter(rt, python.Config{}, testLogger())

		res := a.Run(ctx, `print("hello"); print("world")`)
		assert.False(t, res.IsError)
		assert.Empty(t, res.ErrorKind)
		assert.Equal(t, "hello\nworld\n", res.Content)
		assert.Equal(t, 1, rt.configured)
	})

	t.Run("silent program", func(t *testing.T) {
		rt := &fakeRuntime{run: func(context.Context, python.Options, python.Program) error { return nil }}
		res := python.NewAdapter(rt, python.Config{}, testLogger()).Run(ctx, `x = 1`)
		assert.Equal(t, python.SuccessMessage, res.Content)
		assert.False(t, res.IsError)
	})

	t.Run("interpreter error discards output", func(t *testing.T) {
		rt := &fakeRuntime{run: func(_ context.Context, opts python.Options, _ python.Program) error {
			opts.Output("partial\n")
			return &python.InterpreterError{Message: "NameError: name 'x' is not defined", Line: 2}
		}}
		res := python.NewAdapter(rt, python.Config{}, testLogger()).Run(ctx, "print('partial')\nx")

		assert.True(t, res.IsError)
		assert.Equal(t, executor.ErrorInterpreter, res.ErrorKind)
		assert.Equal(t, "NameError: name 'x' is not defined on line 2", res.Content)
	})

	t.Run("fresh buffer per run", func(t *testing.T) {
		calls := 0
		rt := &fakeRuntime{run: func(_ context.Context, opts python.Options, _ python.Program) error {
			calls++
			if calls == 1 {
				opts.Output("first\n")
			}
			return nil
		}}
		a := python.NewAdapter(rt, python.Config{}, testLogger())

		assert.Equal(t, "first\n", a.Run(ctx, "").Content)
		assert.Equal(t, python.SuccessMessage, a.Run(ctx, "").Content)
	})

	t.Run("timeout keeps partial output", func(t *testing.T) {
		rt := &fakeRuntime{run: func(ctx context.Context, opts python.Options, _ python.Program) error {
			opts.Output("tick\n")
			<-ctx.Done()
			return ctx.Err()
		}}
		a := python.NewAdapter(rt, python.Config{Timeout: 50 * time.Millisecond}, testLogger())

		res := a.Run(ctx, "while True: pass")
		assert.True(t, res.IsError)
		assert.Equal(t, executor.ErrorTimeout, res.ErrorKind)
		assert.Equal(t, "tick\nError: Execution timed out after 50ms", res.Content)
	})
}

func TestAdapter_ModuleResolver(t *testing.T) {
	modules := fstest.MapFS{
		"helpers.py": &fstest.MapFile{Data: []byte("X = 1\n")},
	}

	var resolver fs.FS
	rt := &fakeRuntime{run: func(_ context.Context, opts python.Options, _ python.Program) error {
		resolver = opts.Modules
		return nil
	}}
	python.NewAdapter(rt, python.Config{Modules: modules}, testLogger()).Run(context.Background(), "import helpers")
	require.NotNil(t, resolver)

	data, err := fs.ReadFile(resolver, "helpers.py")
	require.NoError(t, err)
	assert.Equal(t, "X = 1\n", string(data))

	_, err = resolver.Open("missing.py")
	require.Error(t, err)
	assert.Equal(t, "File not found: 'missing.py'", err.Error())
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var notFound *python.ModuleNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestAdapter_SerializesRuns(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	rt := &fakeRuntime{run: func(context.Context, python.Options, python.Program) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}}
	a := python.NewAdapter(rt, python.Config{}, testLogger())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Run(context.Background(), "pass")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestParseTraceback(t *testing.T) {
	t.Run("runtime error", func(t *testing.T) {
		stderr := "Traceback (most recent call last):\n" +
			"  File \"<string>\", line 3, in <module>\n" +
			"  File \"<string>\", line 2, in f\n" +
			"NameError: name 'x' is not defined\n"
		ierr := python.ParseTraceback(stderr, python.ProgramName)
		assert.Equal(t, "NameError: name 'x' is not defined", ierr.Message)
		assert.Equal(t, 2, ierr.Line)
		assert.Equal(t, "NameError: name 'x' is not defined on line 2", ierr.Error())
	})

	t.Run("syntax error", func(t *testing.T) {
		stderr := "  File \"<string>\", line 1\n    print(\"a\"\n         ^\nSyntaxError: '(' was never closed\n"
		ierr := python.ParseTraceback(stderr, python.ProgramName)
		assert.Equal(t, "SyntaxError: '(' was never closed on line 1", ierr.Error())
	})

	t.Run("frames outside the program", func(t *testing.T) {
		stderr := "Traceback (most recent call last):\n" +
			"  File \"/usr/lib/python3/json/__init__.py\", line 346, in loads\n" +
			"ValueError: bad\n"
		ierr := python.ParseTraceback(stderr, python.ProgramName)
		assert.Equal(t, "ValueError: bad", ierr.Error())
	})

	t.Run("empty stderr", func(t *testing.T) {
		assert.NotEmpty(t, python.ParseTraceback("", python.ProgramName).Message)
	})
}
