package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sakif/snippet-runner/internal/app"
	"github.com/sakif/snippet-runner/internal/config"
	"github.com/sakif/snippet-runner/internal/executor"
)

// errSnippetFailed makes the process exit non-zero after a failed run.
var errSnippetFailed = errors.New("snippet failed")

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintfFunc()
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a snippet once",
		Long: `Run a snippet and print its result.

Code can be provided via:
  - File argument: snippet run hello.js
  - Inline flag:   snippet run -l py -c 'print(1 + 1)'
  - Stdin:         echo 'console.log(1)' | snippet run -l js`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().StringP("lang", "l", "", "Language tag (default: from the file extension)")
	cmd.Flags().Duration("timeout", 0, "Execution timeout (default from config)")
	cmd.Flags().String("python-backend", "", "Python backend: docker, wasm, none (default from config)")
	cmd.Flags().BoolP("verbose", "v", false, "Print the result kind and duration")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")
	lang, _ := cmd.Flags().GetString("lang")

	var filename string
	switch {
	case code != "":
	case len(args) > 0:
		filename = args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			return err
		}
		code = string(data)
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		code = string(data)
	}
	if code == "" {
		return cmd.Help()
	}

	language, err := detectLanguage(lang, filename)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.Execution.Timeout = timeout
	}
	if backend, _ := cmd.Flags().GetString("python-backend"); backend != "" {
		cfg.Python.Backend = backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Only start a Python backend when the snippet needs one.
	if executor.ParseLanguage(language) != executor.Python {
		cfg.Python.Backend = config.BackendNone
	}
	eng, cleanup := app.NewEngine(ctx, cfg, newLogger(cmd.ErrOrStderr(), cfg))
	defer cleanup()

	res := eng.Dispatch(ctx, executor.ExecutionRequest{Code: code, Language: language})
	printResult(cmd, res)
	if res.IsError {
		return errSnippetFailed
	}
	return nil
}

func printResult(cmd *cobra.Command, res executor.ExecutionResult) {
	out := cmd.OutOrStdout()
	switch {
	case res.Kind == executor.KindPreview:
		fmt.Fprintln(out, res.Content)
	case res.IsError:
		fmt.Fprintln(cmd.ErrOrStderr(), red(res.Content))
	default:
		fmt.Fprintln(out, green(res.Content))
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		line := gray("[%s in %s]", res.Kind, res.Duration)
		if res.ErrorKind != "" {
			line = gray("[%s, %s error, in %s]", res.Kind, res.ErrorKind, res.Duration)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), line)
	}
}
