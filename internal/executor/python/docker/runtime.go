// Package docker runs Python programs inside pre-warmed, network-less Docker
// containers. Each container serves exactly one run.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/snippet-runner/internal/executor/python"
)

// Runtime is a python.Runtime backed by the Docker daemon.
type Runtime struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool

	mu   sync.Mutex
	opts python.Options
}

var _ python.Runtime = (*Runtime)(nil)

// New connects to the daemon, makes sure the image is present and starts the
// container pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(pullCtx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	logger.Info("docker image is ready", slog.String("image", cfg.Image))

	rt := &Runtime{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	rt.pool.Start()
	return rt, nil
}

// Close stops the pool and the docker client.
func (r *Runtime) Close() error {
	r.pool.Stop()
	return r.cli.Close()
}

// Configure records the options for the next RunMain. Containers resolve
// imports from the image's own site-packages, so opts.Modules is not mounted.
func (r *Runtime) Configure(opts python.Options) error {
	if opts.Dialect != python.Python3 {
		return fmt.Errorf("docker: unsupported dialect %d", opts.Dialect)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
	return nil
}

// RunMain execs prog in a warm container and removes the container afterwards.
func (r *Runtime) RunMain(ctx context.Context, prog python.Program) error {
	r.mu.Lock()
	opts := r.opts
	r.mu.Unlock()

	containerID, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("docker: acquire container: %w", err)
	}
	defer r.pool.Release(containerID)

	execResp, err := r.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"python", "-c", prog.Source},
	})
	if err != nil {
		return fmt.Errorf("docker: exec create: %w", err)
	}

	attachResp, err := r.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return fmt.Errorf("docker: exec attach: %w", err)
	}
	defer attachResp.Close()

	var stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(sinkWriter(opts.Output), &stderr, attachResp.Reader)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			r.logger.Warn("python exec stream ended early", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
		return fmt.Errorf("docker: %w", ctx.Err())
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return fmt.Errorf("docker: exec inspect: %w", err)
	}
	if inspect.ExitCode != 0 {
		ierr := python.ParseTraceback(stderr.String(), prog.Name)
		if stderr.Len() == 0 {
			ierr.Message = fmt.Sprintf("Python exited with status %d", inspect.ExitCode)
		}
		return ierr
	}
	if stderr.Len() > 0 && opts.Output != nil {
		opts.Output(stderr.String())
	}
	return nil
}

// sinkWriter adapts an output callback to io.Writer.
type sinkWriter func(string)

func (w sinkWriter) Write(p []byte) (int, error) {
	if w != nil {
		w(string(p))
	}
	return len(p), nil
}
