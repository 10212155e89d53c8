package containerstack

import (
	"context"
	"strings"

	"github.com/transdock/transdock/internal/executor"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
)

// remoteClient drives a stack on a non-local host by shelling
// `docker compose` through the command executor's SSH wrapper. The
// compose project itself is still parsed locally (over the
// migration's own transferred copy of the compose file) — only the
// container-runtime verbs are remote.
type remoteClient struct {
	exec   *executor.Executor
	logger *observability.Logger
}

// NewRemoteClient constructs a Client that drives `docker compose` on
// a remote host via SSH.
func NewRemoteClient(exec *executor.Executor, logger *observability.Logger) Client {
	return &remoteClient{exec: exec, logger: logger}
}

// Inspect only resolves bind-mount data directories: the `Client.Inspect`
// contract takes no host, so there's no SSH target to run `docker volume
// inspect` against here. Named-volume mountpoint resolution happens in
// localClient, which holds a Docker SDK connection to the host the
// compose project will actually run on.
func (c *remoteClient) Inspect(ctx context.Context, composePath string) result.Result[ComposeStack] {
	return loadComposeStack(composePath)
}

func (c *remoteClient) ValidatePrerequisites(ctx context.Context, composePath string) result.Result[PrerequisiteReport] {
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
	return result.Ok(PrerequisiteReport{Valid: true, Complexity: complexity, ExternalVolumes: ext})
}

func (c *remoteClient) Stop(ctx context.Context, composePath, host string) result.Result[bool] {
	return c.runCompose(ctx, host, composePath, "stop")
}

func (c *remoteClient) Start(ctx context.Context, composePath, host string) result.Result[bool] {
	return c.runCompose(ctx, host, composePath, "up", "-d")
}

func (c *remoteClient) Down(ctx context.Context, composePath string, removeVolumes bool, host string) result.Result[bool] {
	args := []string{"down"}
	if removeVolumes {
		args = append(args, "-v")
	}
	return c.runCompose(ctx, host, composePath, args...)
}

func (c *remoteClient) Status(ctx context.Context, composePath, host string) result.Result[StackStatus] {
	sshCfg := executor.SSHConfig{Host: host}
	cmdResult := c.exec.ExecuteRemote(ctx, sshCfg, []string{"docker", "compose", "-f", composePath, "ps", "--format", "json"})
	if cmdResult.IsErr() {
		return result.Fail[StackStatus](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[StackStatus](result.Remote("STACK_STATUS_FAILED", cmd.Stderr))
	}
	return result.Ok(parseComposeStatusJSON(cmd.Stdout))
}

func (c *remoteClient) ListStacks(ctx context.Context, host string) result.Result[[]string] {
	sshCfg := executor.SSHConfig{Host: host}
	cmdResult := c.exec.ExecuteRemote(ctx, sshCfg, []string{"docker", "compose", "ls", "--format", "json"})
	if cmdResult.IsErr() {
		return result.Fail[[]string](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[[]string](result.Remote("STACK_LIST_FAILED", cmd.Stderr))
	}
	return result.Ok(parseComposeNameListJSON(cmd.Stdout))
}

func (c *remoteClient) FindByPath(ctx context.Context, composePath, host string) result.Result[ComposeStack] {
	return loadComposeStack(composePath)
}

func (c *remoteClient) FindByName(ctx context.Context, name, host string) result.Result[ComposeStack] {
	return result.Fail[ComposeStack](result.NotFound("STACK_NOT_FOUND", "find-by-name requires a path index, not yet wired to a remote discovery store"))
}

func (c *remoteClient) runCompose(ctx context.Context, host, composePath string, args ...string) result.Result[bool] {
	sshCfg := executor.SSHConfig{Host: host}
	full := append([]string{"docker", "compose", "-f", composePath}, args...)
	cmdResult := c.exec.ExecuteRemote(ctx, sshCfg, full)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Remote("COMPOSE_COMMAND_FAILED", strings.TrimSpace(cmd.Stderr)))
	}
	return result.Ok(true)
}
