package containerstack

import (
	"context"

	"github.com/transdock/transdock/internal/result"
)

// ComposeStack is the read projection of a loaded compose file plus
// the data directories the orchestrator needs to snapshot/transfer.
type ComposeStack struct {
	ProjectName            string
	Path                   string
	Services               []string
	Networks               []string
	Volumes                []string
	bindMounts             []string
	namedVolumeNames       []string
	namedVolumeMountpoints []string
}

// DataDirectories returns the set of absolute host paths that hold the
// stack's persistent data: bind-mount sources plus the resolved
// Docker-managed mountpoint of each named volume the services use (see
// NamedVolumeNames/WithNamedVolumeMountpoints).
func (s ComposeStack) DataDirectories() []string {
	out := make([]string, 0, len(s.bindMounts)+len(s.namedVolumeMountpoints))
	out = append(out, s.bindMounts...)
	out = append(out, s.namedVolumeMountpoints...)
	return out
}

// NamedVolumeNames returns the top-level volume names the stack's
// services mount (as opposed to bind mounts), for the caller to resolve
// to on-disk mountpoints via `docker volume inspect`.
func (s ComposeStack) NamedVolumeNames() []string {
	out := make([]string, len(s.namedVolumeNames))
	copy(out, s.namedVolumeNames)
	return out
}

// WithNamedVolumeMountpoints returns a copy of the stack with resolved
// named-volume mountpoints folded into DataDirectories().
func (s ComposeStack) WithNamedVolumeMountpoints(mountpoints []string) ComposeStack {
	s.namedVolumeMountpoints = dedupe(mountpoints)
	return s
}

// PrerequisiteReport is validate_prerequisites' return shape.
type PrerequisiteReport struct {
	Valid          bool
	Complexity     string // "simple" or "complex"
	ExternalVolumes bool
	Error          string
}

// StackStatus is the per-service running/health projection returned
// by Status.
type StackStatus struct {
	Services map[string]ServiceStatus
}

// ServiceStatus is one service's liveness projection.
type ServiceStatus struct {
	State   string // running, exited, restarting, ...
	Health  string // healthy, unhealthy, starting, "" if no healthcheck
	Running bool
}

// Client is the interface the migration orchestrator depends on. Two
// separate implementations exist — local (Docker SDK) and remote (SSH +
// docker compose); nothing selects between them by host, and the local
// implementation ignores the host argument.
type Client interface {
	Inspect(ctx context.Context, composePath string) result.Result[ComposeStack]
	ValidatePrerequisites(ctx context.Context, composePath string) result.Result[PrerequisiteReport]
	Stop(ctx context.Context, composePath, host string) result.Result[bool]
	Start(ctx context.Context, composePath, host string) result.Result[bool]
	Down(ctx context.Context, composePath string, removeVolumes bool, host string) result.Result[bool]
	Status(ctx context.Context, composePath, host string) result.Result[StackStatus]
	ListStacks(ctx context.Context, host string) result.Result[[]string]
	FindByPath(ctx context.Context, composePath, host string) result.Result[ComposeStack]
	FindByName(ctx context.Context, name, host string) result.Result[ComposeStack]
}
