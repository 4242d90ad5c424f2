package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// containerLabel marks containers owned by the pool so they can be told apart
// from anything else on the daemon.
const containerLabel = "snippet-runner.sandbox"

const (
	refillInterval = 100 * time.Millisecond
	createBackoff  = time.Second
)

// Pool keeps a set of idle, network-less Python containers warm. A container
// is handed out once and removed by the caller after a single run.
type Pool struct {
	cli        *client.Client
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewPool creates a pool. Call Start to begin warming containers.
func NewPool(cli *client.Client, cfg Config, logger *slog.Logger) *Pool {
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, size),
		done:       make(chan struct{}),
	}
}

// Start launches the background refill loop.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting python container pool", slog.Int("poolSize", cap(p.containers)))
		p.wg.Add(1)
		go p.refill()
	})
}

// Stop ends the refill loop and removes every idle container.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("stopping python container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.remove(id)
			default:
				return
			}
		}
	})
}

// Acquire takes a warm container, blocking until one is ready or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("container pool stopped")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Release removes a container that has served its run.
func (p *Pool) Release(id string) {
	p.remove(id)
}

// Idle reports how many warm containers are waiting.
func (p *Pool) Idle() int {
	return len(p.containers)
}

func (p *Pool) refill() {
	defer p.wg.Done()

	ticker := time.NewTicker(refillInterval)
	defer ticker.Stop()

	for {
		for len(p.containers) < cap(p.containers) {
			id, err := p.create()
			if err != nil {
				p.logger.Error("failed to warm python container", slog.String("error", err.Error()))
				select {
				case <-time.After(createBackoff):
					continue
				case <-p.done:
					return
				}
			}

			select {
			case p.containers <- id:
			case <-p.done:
				p.remove(id)
				return
			}
		}

		select {
		case <-ticker.C:
		case <-p.done:
			return
		}
	}
}

// create starts an idle container that sleeps until a run is exec'd into it.
func (p *Pool) create() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,size=16m"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:  p.config.Image,
		Cmd:    []string{"sleep", "infinity"},
		User:   "nobody",
		Labels: map[string]string{containerLabel: "true"},
		Env:    []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1"},
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.remove(resp.ID)
		return "", fmt.Errorf("container start: %w", err)
	}

	return resp.ID, nil
}

func (p *Pool) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("failed to remove python container", slog.String("id", id), slog.String("error", err.Error()))
	}
}
