package zfs

import (
	"fmt"
	"strconv"
	"strings"

	"context"

	"github.com/transdock/transdock/internal/executor"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
	"go.uber.org/zap"
)

// PoolService implements the C3 pool operations.
type PoolService struct {
	exec   *executor.Executor
	logger *observability.Logger
}

// NewPoolService constructs a PoolService.
func NewPoolService(exec *executor.Executor, logger *observability.Logger) *PoolService {
	return &PoolService{exec: exec, logger: logger}
}

func (s *PoolService) zapLogger() *zap.Logger {
	if s.logger == nil {
		return nil
	}
	return s.logger.Logger
}

// List runs `zpool list -H -o name,size,alloc,free,expandsz,frag,health,dedup [name]`.
func (s *PoolService) List(ctx context.Context, name string) result.Result[[]Pool] {
	args := []string{"-H", "-o", "name,size,alloc,free,expandsz,frag,health,dedup"}
	if name != "" {
		args = append(args, name)
	}

	cmdResult := s.exec.ExecuteZPool(ctx, "list", args...)
	if cmdResult.IsErr() {
		return result.Fail[[]Pool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[[]Pool](result.NotFound("POOL_NOT_FOUND", cmd.Stderr))
	}

	lines := splitLines(cmd.Stdout)
	pools := make([]Pool, 0, len(lines))
	for _, line := range lines {
		if pool, ok := parsePoolListRow(line, s.zapLogger()); ok {
			pools = append(pools, pool)
		}
	}
	return result.Ok(pools)
}

// Get fetches a single pool by name.
func (s *PoolService) Get(ctx context.Context, name string) result.Result[Pool] {
	listResult := s.List(ctx, name)
	if listResult.IsErr() {
		return result.Fail[Pool](listResult.Err())
	}
	pools := listResult.Must()
	if len(pools) == 0 {
		return result.Fail[Pool](result.NotFound("POOL_NOT_FOUND", fmt.Sprintf("pool %q does not exist", name)))
	}
	return result.Ok(pools[0])
}

// GetStatus runs `zpool status -v name` and parses state, per-vdev
// error counters, and scrub progress.
func (s *PoolService) GetStatus(ctx context.Context, name string) result.Result[Pool] {
	cmdResult := s.exec.ExecuteZPool(ctx, "status", "-v", name)
	if cmdResult.IsErr() {
		return result.Fail[Pool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[Pool](result.NotFound("POOL_NOT_FOUND", cmd.Stderr))
	}

	base := s.Get(ctx, name)
	if base.IsErr() {
		return base
	}
	pool := base.Must()
	pool.VDevs, pool.Scan = parsePoolStatus(cmd.Stdout)
	return result.Ok(pool)
}

// parsePoolStatus extracts the vdev tree and scan-stats block from
// `zpool status -v` free-form output.
func parsePoolStatus(stdout string) ([]VDev, *ScanStats) {
	var vdevs []VDev
	var scan *ScanStats

	inConfig := false
	for _, line := range splitLines(stdout) {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "scan:"):
			scan = parseScanLine(trimmed)
		case strings.HasPrefix(trimmed, "config:"):
			inConfig = true
		case strings.HasPrefix(trimmed, "errors:"):
			inConfig = false
		case inConfig:
			if v, ok := parseVDevLine(trimmed); ok {
				vdevs = append(vdevs, v)
			}
		}
	}
	return vdevs, scan
}

// parseVDevLine parses one `NAME STATE READ WRITE CKSUM` line from the
// config: section of `zpool status -v`.
func parseVDevLine(line string) (VDev, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] == "NAME" {
		return VDev{}, false
	}
	read, _ := strconv.Atoi(fields[2])
	write, _ := strconv.Atoi(fields[3])
	cksum, _ := strconv.Atoi(fields[4])
	return VDev{
		Name:           fields[0],
		State:          fields[1],
		ReadErrors:     read,
		WriteErrors:    write,
		ChecksumErrors: cksum,
	}, true
}

func parseScanLine(line string) *ScanStats {
	stats := &ScanStats{}
	if strings.Contains(line, "in progress") {
		stats.InProgress = true
	}
	return stats
}

// StartScrub runs `zpool scrub name`.
func (s *PoolService) StartScrub(ctx context.Context, name string) result.Result[bool] {
	return s.runBool(ctx, "scrub", name)
}

// StopScrub runs `zpool scrub -s name`.
func (s *PoolService) StopScrub(ctx context.Context, name string) result.Result[bool] {
	return s.runBool(ctx, "scrub", "-s", name)
}

// GetScrubStatus reports the scan stats from pool status.
func (s *PoolService) GetScrubStatus(ctx context.Context, name string) result.Result[*ScanStats] {
	statusResult := s.GetStatus(ctx, name)
	if statusResult.IsErr() {
		return result.Fail[*ScanStats](statusResult.Err())
	}
	return result.Ok(statusResult.Must().Scan)
}

// Export runs `zpool export [-f] name`.
func (s *PoolService) Export(ctx context.Context, name string, force bool) result.Result[bool] {
	if force {
		return s.runBool(ctx, "export", "-f", name)
	}
	return s.runBool(ctx, "export", name)
}

// Import runs `zpool import [-f] name [newName]`.
func (s *PoolService) Import(ctx context.Context, name, newName string, force bool) result.Result[bool] {
	args := []string{}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)
	if newName != "" {
		args = append(args, newName)
	}
	return s.runBool(ctx, "import", args...)
}

// GetIOStat runs `zpool iostat [name] interval count`.
func (s *PoolService) GetIOStat(ctx context.Context, name string, interval, count int) result.Result[string] {
	args := []string{}
	if name != "" {
		args = append(args, name)
	}
	args = append(args, strconv.Itoa(interval), strconv.Itoa(count))

	cmdResult := s.exec.ExecuteZPool(ctx, "iostat", args...)
	if cmdResult.IsErr() {
		return result.Fail[string](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[string](result.Operation("POOL_IOSTAT_FAILED", cmd.Stderr))
	}
	return result.Ok(cmd.Stdout)
}

// GetPoolHistory runs `zpool history name`.
func (s *PoolService) GetPoolHistory(ctx context.Context, name string) result.Result[[]string] {
	cmdResult := s.exec.ExecuteZPool(ctx, "history", name)
	if cmdResult.IsErr() {
		return result.Fail[[]string](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[[]string](result.Operation("POOL_HISTORY_FAILED", cmd.Stderr))
	}
	return result.Ok(splitLines(cmd.Stdout))
}

// HealthCheck parses `zpool status -v pool` and derives a PoolHealth.
func (s *PoolService) HealthCheck(ctx context.Context, name string) result.Result[PoolHealth] {
	statusResult := s.GetStatus(ctx, name)
	if statusResult.IsErr() {
		return result.Fail[PoolHealth](statusResult.Err())
	}
	return result.Ok(statusResult.Must().DeriveHealth())
}

func (s *PoolService) runBool(ctx context.Context, subcmd string, args ...string) result.Result[bool] {
	cmdResult := s.exec.ExecuteZPool(ctx, subcmd, args...)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Operation("POOL_OPERATION_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}
