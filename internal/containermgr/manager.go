// Package containermgr starts and stops worker containers on demand through
// the Docker Engine API, optionally hardened with the gVisor (runsc)
// runtime.
package containermgr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/nat"
	"github.com/docker/docker/client"
)

// Manager is a thin typed wrapper over the Docker Engine API for the two
// operations the pool needs: start a named worker container publishing its
// port, and stop+remove it by name.
type Manager struct {
	cli           *client.Client
	image         string
	runscEnabled  bool
	containerPort int
	log           *slog.Logger
}

// Config selects the image and runtime hardening for started containers.
type Config struct {
	Image         string
	RunscEnabled  bool
	ContainerPort int // in-container port the worker listens on, e.g. 6090
}

// New builds a Manager using the Docker client discovered from the
// environment (DOCKER_HOST and friends), matching the teacher's
// client.NewClientWithOpts(client.FromEnv, ...) construction.
func New(cfg Config, log *slog.Logger) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("containermgr: docker client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cli:           cli,
		image:         cfg.Image,
		runscEnabled:  cfg.RunscEnabled,
		containerPort: cfg.ContainerPort,
		log:           log,
	}, nil
}

// Close releases the underlying Docker client.
func (m *Manager) Close() error {
	return m.cli.Close()
}

// Start creates and starts a detached container named id, publishing its
// worker port on hostPort of the loopback interface.
func (m *Manager) Start(ctx context.Context, id string, hostPort int) error {
	containerPortSpec := nat.Port(strconv.Itoa(m.containerPort) + "/tcp")
	hostBinding := nat.PortBinding{
		HostIP:   "127.0.0.1",
		HostPort: strconv.Itoa(hostPort),
	}

	hostConfig := &container.HostConfig{
		NetworkMode: "bridge",
		PortBindings: nat.PortMap{
			containerPortSpec: []nat.PortBinding{hostBinding},
		},
	}
	if m.runscEnabled {
		hostConfig.Runtime = "runsc"
		hostConfig.ReadonlyRootfs = true
	}

	resp, err := m.cli.ContainerCreate(ctx, &container.Config{
		Image:        m.image,
		ExposedPorts: nat.PortSet{containerPortSpec: struct{}{}},
	}, hostConfig, nil, nil, id)
	if err != nil {
		return fmt.Errorf("containermgr: create %s: %w", id, err)
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("containermgr: start %s: %w", id, err)
	}
	m.log.Debug("container started", "id", id, "host_port", hostPort)
	return nil
}

// Stop stops then force-removes the named container. Failure is logged, not
// returned as fatal: by the time Stop runs, the submission's result has
// already been delivered.
func (m *Manager) Stop(ctx context.Context, id string) error {
	if err := m.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		m.log.Warn("container stop failed, forcing removal", "id", id, "error", err)
	}
	if err := m.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("containermgr: remove %s: %w", id, err)
	}
	return nil
}

// Sweep stops and removes every container whose name carries the
// codescord- prefix, reclaiming anything leaked across a prior crash. It is
// called once at broker startup and once at clean shutdown.
func (m *Manager) Sweep(ctx context.Context, namePrefix string) error {
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return fmt.Errorf("containermgr: list: %w", err)
	}
	for _, c := range containers {
		for _, name := range c.Names {
			if matchesPrefix(name, namePrefix) {
				m.log.Info("sweeping leaked container", "id", c.ID[:12], "name", name)
				_ = m.Stop(ctx, c.ID)
				break
			}
		}
	}
	return nil
}

func matchesPrefix(dockerName, prefix string) bool {
	// Docker container names from ContainerList are prefixed with "/".
	name := dockerName
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	if len(name) < len(prefix) {
		return false
	}
	return name[:len(prefix)] == prefix
}
