package zfs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/transdock/transdock/internal/executor"
	"github.com/transdock/transdock/internal/observability"
	"github.com/transdock/transdock/internal/result"
	"github.com/transdock/transdock/internal/security"
	"go.uber.org/zap"
)

// DatasetService implements the C3 dataset operations.
type DatasetService struct {
	exec   *executor.Executor
	logger *observability.Logger
}

// NewDatasetService constructs a DatasetService.
func NewDatasetService(exec *executor.Executor, logger *observability.Logger) *DatasetService {
	return &DatasetService{exec: exec, logger: logger}
}

func (s *DatasetService) zapLogger() *zap.Logger {
	if s.logger == nil {
		return nil
	}
	return s.logger.Logger
}

// Create runs `zfs create [-o k=v ...] name`, failing with
// AlreadyExists if the dataset is already present.
func (s *DatasetService) Create(ctx context.Context, name string, props map[string]string) result.Result[Dataset] {
	nameResult := security.ValidateDatasetName(name)
	if nameResult.IsErr() {
		return result.Fail[Dataset](nameResult.Err())
	}

	existing := s.Get(ctx, name)
	if existing.IsOk() {
		return result.Fail[Dataset](result.AlreadyExists("DATASET_ALREADY_EXISTS", fmt.Sprintf("dataset %q already exists", name)))
	}

	args := []string{}
	for k, v := range props {
		if r := security.ValidateZFSProperty(k, v); r.IsErr() {
			return result.Fail[Dataset](r.Err())
		}
		args = append(args, "-o", k+"="+v)
	}
	args = append(args, name)

	cmdResult := s.exec.ExecuteZFS(ctx, "create", args...)
	if cmdResult.IsErr() {
		return result.Fail[Dataset](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[Dataset](result.Operation("DATASET_CREATE_FAILED", cmd.Stderr))
	}

	return s.Get(ctx, name)
}

// Destroy runs `zfs destroy [-f] [-r] name`, failing with NotFound if
// the dataset is absent.
func (s *DatasetService) Destroy(ctx context.Context, name string, force, recursive bool) result.Result[bool] {
	if existing := s.Get(ctx, name); existing.IsErr() {
		return result.Fail[bool](result.NotFound("DATASET_NOT_FOUND", fmt.Sprintf("dataset %q does not exist", name)))
	}

	args := []string{}
	if force {
		args = append(args, "-f")
	}
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, name)

	cmdResult := s.exec.ExecuteZFS(ctx, "destroy", args...)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Operation("DATASET_DESTROY_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}

// List runs `zfs list -H -o name,used,avail,refer,compression,checksum
// [-r pool]`.
func (s *DatasetService) List(ctx context.Context, pool string) result.Result[[]Dataset] {
	args := []string{"-H", "-o", "name,used,avail,refer,compression,checksum"}
	if pool != "" {
		args = append(args, "-r", pool)
	}

	cmdResult := s.exec.ExecuteZFS(ctx, "list", args...)
	if cmdResult.IsErr() {
		return result.Fail[[]Dataset](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[[]Dataset](result.Operation("DATASET_LIST_FAILED", cmd.Stderr))
	}

	lines := splitLines(cmd.Stdout)
	datasets := make([]Dataset, 0, len(lines))
	for _, line := range lines {
		if ds, ok := parseDatasetRow(line, s.zapLogger()); ok {
			datasets = append(datasets, ds)
		}
	}
	return result.Ok(datasets)
}

// Get fetches a single dataset's list row plus its full property map.
func (s *DatasetService) Get(ctx context.Context, name string) result.Result[Dataset] {
	nameResult := security.ValidateDatasetName(name)
	if nameResult.IsErr() {
		return result.Fail[Dataset](nameResult.Err())
	}

	cmdResult := s.exec.ExecuteZFS(ctx, "list", "-H", "-o", "name,used,avail,refer,compression,checksum", name)
	if cmdResult.IsErr() {
		return result.Fail[Dataset](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[Dataset](result.NotFound("DATASET_NOT_FOUND", fmt.Sprintf("dataset %q does not exist", name)))
	}

	lines := splitLines(cmd.Stdout)
	if len(lines) == 0 {
		return result.Fail[Dataset](result.NotFound("DATASET_NOT_FOUND", fmt.Sprintf("dataset %q does not exist", name)))
	}
	ds, ok := parseDatasetRow(lines[0], s.zapLogger())
	if !ok {
		return result.Fail[Dataset](expectedColumnsError("zfs list"))
	}

	propsResult := s.exec.ExecuteZFS(ctx, "get", "-H", "-o", "property,value", "all", name)
	if propsResult.IsOk() && propsResult.Must().Success() {
		ds.Properties = parsePropertyMap(propsResult.Must().Stdout)
	}

	return result.Ok(ds)
}

func parsePropertyMap(stdout string) map[string]string {
	props := make(map[string]string)
	for _, line := range splitLines(stdout) {
		cols, ok := splitTabRow(line, 2)
		if !ok {
			continue
		}
		props[cols[0]] = cols[1]
	}
	return props
}

// SetProperty validates k/v via C2 then runs `zfs set k=v name`.
func (s *DatasetService) SetProperty(ctx context.Context, name, key, value string) result.Result[bool] {
	if r := security.ValidateDatasetName(name); r.IsErr() {
		return result.Fail[bool](r.Err())
	}
	if r := security.ValidateZFSProperty(key, value); r.IsErr() {
		return result.Fail[bool](r.Err())
	}

	cmdResult := s.exec.ExecuteZFS(ctx, "set", key+"="+value, name)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Operation("DATASET_SET_PROPERTY_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}

// Mount runs `zfs mount name`.
func (s *DatasetService) Mount(ctx context.Context, name string) result.Result[bool] {
	cmdResult := s.exec.ExecuteZFS(ctx, "mount", name)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Operation("DATASET_MOUNT_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}

// Unmount runs `zfs unmount [-f] name`.
func (s *DatasetService) Unmount(ctx context.Context, name string, force bool) result.Result[bool] {
	args := []string{}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)

	cmdResult := s.exec.ExecuteZFS(ctx, "unmount", args...)
	if cmdResult.IsErr() {
		return result.Fail[bool](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[bool](result.Operation("DATASET_UNMOUNT_FAILED", cmd.Stderr))
	}
	return result.Ok(true)
}

// DatasetUsage is the richer report get_usage produces.
type DatasetUsage struct {
	Name               DatasetName
	Used               SizeValue
	Available          SizeValue
	Referenced         SizeValue
	LogicalUsed        SizeValue
	LogicalReferenced  SizeValue
	Quota              SizeValue
	Reservation        SizeValue
	CompressRatio      float64
	Dedup              string
}

// GetUsage runs the wider `zfs list -o ...` usage report.
func (s *DatasetService) GetUsage(ctx context.Context, name string) result.Result[DatasetUsage] {
	cols := "name,used,available,referenced,logicalused,logicalreferenced,quota,reservation,compressratio,dedup"
	cmdResult := s.exec.ExecuteZFS(ctx, "list", "-H", "-o", cols, name)
	if cmdResult.IsErr() {
		return result.Fail[DatasetUsage](cmdResult.Err())
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return result.Fail[DatasetUsage](result.NotFound("DATASET_NOT_FOUND", fmt.Sprintf("dataset %q does not exist", name)))
	}
	lines := splitLines(cmd.Stdout)
	if len(lines) == 0 {
		return result.Fail[DatasetUsage](expectedColumnsError("zfs list usage"))
	}

	row, ok := splitTabRow(lines[0], 10)
	if !ok {
		return result.Fail[DatasetUsage](expectedColumnsError("zfs list usage"))
	}

	nameResult := ParseDatasetName(row[0])
	if nameResult.IsErr() {
		return result.Fail[DatasetUsage](nameResult.Err())
	}

	return result.Ok(DatasetUsage{
		Name:              nameResult.Must(),
		Used:              mustSize(row[1]),
		Available:         mustSize(row[2]),
		Referenced:        mustSize(row[3]),
		LogicalUsed:       mustSize(row[4]),
		LogicalReferenced: mustSize(row[5]),
		Quota:             mustSize(row[6]),
		Reservation:       mustSize(row[7]),
		CompressRatio:     parseRatio(row[8]),
		Dedup:             row[9],
	})
}

// PerformanceSample is a before/after I/O counter snapshot.
type PerformanceSample struct {
	BytesReadDelta    uint64
	BytesWrittenDelta uint64
	ReadOpsPerSecond  float64
	WriteOpsPerSecond float64
}

// MonitorPerformance samples `zpool iostat -v pool 1 1`-style counters
// before and after sleeping durationSeconds, suspending cooperatively
// on ctx cancellation during the sleep.
func (s *DatasetService) MonitorPerformance(ctx context.Context, name string, durationSeconds int) result.Result[PerformanceSample] {
	ds := ParseDatasetName(name)
	if ds.IsErr() {
		return result.Fail[PerformanceSample](ds.Err())
	}
	pool := ds.Must().Pool()

	before, err := s.iostatSample(ctx, pool)
	if err != nil {
		return result.Fail[PerformanceSample](err)
	}

	select {
	case <-ctx.Done():
		return result.Fail[PerformanceSample](result.Cancelled("MONITOR_CANCELLED", "performance monitoring cancelled"))
	case <-time.After(time.Duration(durationSeconds) * time.Second):
	}

	after, err := s.iostatSample(ctx, pool)
	if err != nil {
		return result.Fail[PerformanceSample](err)
	}

	readDelta := after.read - before.read
	writeDelta := after.write - before.write

	return result.Ok(PerformanceSample{
		BytesReadDelta:    readDelta,
		BytesWrittenDelta: writeDelta,
		ReadOpsPerSecond:  float64(readDelta) / float64(durationSeconds),
		WriteOpsPerSecond: float64(writeDelta) / float64(durationSeconds),
	})
}

type iostatCounters struct {
	read, write uint64
}

// iostatSample runs `zpool iostat -v pool 1 1` and parses the
// (K,M,G,T)*1024^n bandwidth columns via SizeValue's own suffix parser
// so there is exactly one suffix parser in the codebase.
func (s *DatasetService) iostatSample(ctx context.Context, pool string) (iostatCounters, *result.Error) {
	cmdResult := s.exec.ExecuteZPool(ctx, "iostat", "-v", pool, "1", "1")
	if cmdResult.IsErr() {
		return iostatCounters{}, cmdResult.Err()
	}
	cmd := cmdResult.Must()
	if !cmd.Success() {
		return iostatCounters{}, result.Operation("POOL_IOSTAT_FAILED", cmd.Stderr)
	}

	lines := splitLines(cmd.Stdout)
	for _, line := range lines {
		fields := fieldsOf(line)
		// pool alloc free ops-read ops-write bw-read bw-write
		if len(fields) >= 7 && fields[0] == pool {
			readR := mustSize(fields[5])
			writeR := mustSize(fields[6])
			return iostatCounters{read: readR.Bytes(), write: writeR.Bytes()}, nil
		}
	}
	return iostatCounters{}, nil
}

func fieldsOf(line string) []string {
	return strings.Fields(line)
}
