package docker

// Config holds the container settings for the Docker Python backend.
type Config struct {
	// Image is the Python image every sandbox container runs.
	Image string
	// MemoryLimit caps container memory, in bytes.
	MemoryLimit int64
	// CPULimit is the number of CPUs a container may use.
	CPULimit float64
	// PoolSize is the number of pre-warmed containers kept ready.
	PoolSize int
}

// DefaultConfig returns settings for a small alpine-based sandbox.
func DefaultConfig() Config {
	return Config{
		Image:       "python:3.12-alpine",
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		PoolSize:    3,
	}
}
