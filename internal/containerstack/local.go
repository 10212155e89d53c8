package containerstack

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/client"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
	"go.uber.org/zap"
)

// localClient drives the stack through the Docker SDK and the host's
// `docker compose` binary, for migrations whose host is empty or
// "localhost".
type localClient struct {
	cli    *client.Client
	logger *observability.Logger
	mu     sync.RWMutex
}

// NewLocalClient connects to the local Docker daemon, verifying
// reachability immediately (mirrors the teacher's connect-then-ping
// pattern).
func NewLocalClient(logger *observability.Logger, host string) (Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	logger.Info("container stack client connected to local docker daemon")
	return &localClient{cli: cli, logger: logger}, nil
}

func (c *localClient) Inspect(ctx context.Context, composePath string) result.Result[ComposeStack] {
	stackResult := loadComposeStack(composePath)
	if stackResult.IsErr() {
		return stackResult
	}
	return result.Ok(c.resolveNamedVolumes(ctx, stackResult.Must()))
}

// resolveNamedVolumes fills in DataDirectories() with the Docker-managed
// mountpoint of each named volume the stack's services mount. A volume
// whose mountpoint can't be resolved (removed, daemon error) is logged
// and skipped rather than failing the whole inspection.
func (c *localClient) resolveNamedVolumes(ctx context.Context, stack ComposeStack) ComposeStack {
	names := stack.NamedVolumeNames()
	if len(names) == 0 {
		return stack
	}

	mountpoints := make([]string, 0, len(names))
	for _, name := range names {
		mpResult := c.NamedVolumeMountpoint(ctx, name)
		if mpResult.IsErr() {
			c.logger.Warn("named volume mountpoint lookup failed", zap.String("volume", name), zap.String("error", mpResult.Err().Message))
			continue
		}
		mountpoints = append(mountpoints, mpResult.Must())
	}
	return stack.WithNamedVolumeMountpoints(mountpoints)
}

func (c *localClient) ValidatePrerequisites(ctx context.Context, composePath string) result.Result[PrerequisiteReport] {
	stackResult := loadComposeStack(composePath)
	if stackResult.IsErr() {
		return result.Ok(PrerequisiteReport{Valid: false, Error: stackResult.Err().Message})
	}
	stack := stackResult.Must()

	ext, err := externalVolumes(composePath)
	if err != nil {
		return result.Ok(PrerequisiteReport{Valid: false, Error: err.Error()})
	}

	complexity := "simple"
	if len(stack.Services) > 5 || len(stack.Networks) > 2 {
		complexity = "complex"
	}

	return result.Ok(PrerequisiteReport{
		Valid:           true,
		Complexity:      complexity,
		ExternalVolumes: ext,
	})
}

func (c *localClient) Stop(ctx context.Context, composePath, host string) result.Result[bool] {
	return c.runCompose(ctx, composePath, "stop")
}

func (c *localClient) Start(ctx context.Context, composePath, host string) result.Result[bool] {
	return c.runCompose(ctx, composePath, "up", "-d")
}

func (c *localClient) Down(ctx context.Context, composePath string, removeVolumes bool, host string) result.Result[bool] {
	args := []string{"down"}
	if removeVolumes {
		args = append(args, "-v")
	}
	return c.runCompose(ctx, composePath, args...)
}

func (c *localClient) Status(ctx context.Context, composePath, host string) result.Result[StackStatus] {
	cmd := exec.CommandContext(ctx, "docker", "compose", "-f", composePath, "ps", "--format", "json")
	out, err := cmd.Output()
	if err != nil {
		return result.Fail[StackStatus](result.Operation("STACK_STATUS_FAILED", err.Error()))
	}
	return result.Ok(parseComposeStatusJSON(string(out)))
}

func (c *localClient) ListStacks(ctx context.Context, host string) result.Result[[]string] {
	cmd := exec.CommandContext(ctx, "docker", "compose", "ls", "--format", "json")
	out, err := cmd.Output()
	if err != nil {
		return result.Fail[[]string](result.Operation("STACK_LIST_FAILED", err.Error()))
	}
	return result.Ok(parseComposeNameListJSON(string(out)))
}

func (c *localClient) FindByPath(ctx context.Context, composePath, host string) result.Result[ComposeStack] {
	return loadComposeStack(composePath)
}

func (c *localClient) FindByName(ctx context.Context, name, host string) result.Result[ComposeStack] {
	return result.Fail[ComposeStack](result.NotFound("STACK_NOT_FOUND", "find-by-name requires a path index, not yet wired to a local discovery store"))
}

func (c *localClient) runCompose(ctx context.Context, composePath string, args ...string) result.Result[bool] {
	full := append([]string{"compose", "-f", composePath}, args...)
	cmd := exec.CommandContext(ctx, "docker", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("compose command failed", zap.String("compose_path", composePath), zap.Strings("args", args), zap.String("output", string(out)))
		return result.Fail[bool](result.Operation("COMPOSE_COMMAND_FAILED", strings.TrimSpace(string(out))))
	}
	return result.Ok(true)
}

// NamedVolumeMountpoint inspects a Docker-managed volume to find its
// on-disk mountpoint, used when a data directory comes from a named
// volume rather than a bind mount.
func (c *localClient) NamedVolumeMountpoint(ctx context.Context, name string) result.Result[string] {
	v, err := c.cli.VolumeInspect(ctx, name)
	if err != nil {
		return result.Fail[string](result.NotFound("VOLUME_NOT_FOUND", err.Error()))
	}
	return result.Ok(v.Mountpoint)
}
