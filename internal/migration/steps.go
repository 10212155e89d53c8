package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/transdock/transdock/internal/executor"
	"github.com/transdock/transdock/internal/zfs"
)

// runValidation runs C5's prerequisite check, tests target-host
// reachability (a no-op for localhost), and confirms ZFS availability
// when use_zfs is set. Results are written into step.details.
func (o *Orchestrator) runValidation(ctx context.Context, m *Migration, step *MigrationStep) error {
	prereq := o.stack.ValidatePrerequisites(ctx, m.ComposeStackPath)
	if prereq.IsErr() {
		return prereq.Err()
	}
	report := prereq.Must()
	if !report.Valid {
		return fmt.Errorf("stack validation failed: %s", report.Error)
	}
	step.Details["complexity"] = report.Complexity
	step.Details["external_volumes"] = report.ExternalVolumes

	if !m.TargetHost.IsLocalhost() {
		sshCfg := executor.SSHConfig{Host: m.TargetHost.Hostname, Port: m.TargetHost.Port, User: m.TargetHost.Username}
		pingResult := o.exec.ExecuteRemote(ctx, sshCfg, []string{"true"})
		if pingResult.IsErr() || !pingResult.Must().Success() {
			return fmt.Errorf("target host %s is unreachable", m.TargetHost.String())
		}
		step.Details["target_reachable"] = true
	}

	if m.UseZFS {
		poolList := o.dataset.List(ctx, "")
		if poolList.IsErr() {
			return fmt.Errorf("zfs unavailable: %s", poolList.Err().Message)
		}
		step.Details["zfs_available"] = true
	}

	step.UpdateProgress(100, "validation complete")
	return nil
}

// runSnapshotCreation reads data_directories() from C5 and creates one
// snapshot per directory, named migration_{id}_{yyyymmdd_hhmmss}.
// Per-directory failure is logged and the loop continues
// (best-effort); full names are collected into
// migration.metadata['snapshots'].
func (o *Orchestrator) runSnapshotCreation(ctx context.Context, m *Migration, step *MigrationStep) error {
	stackResult := o.stack.Inspect(ctx, m.ComposeStackPath)
	if stackResult.IsErr() {
		return stackResult.Err()
	}
	dataDirs := stackResult.Must().DataDirectories()

	if len(dataDirs) == 0 {
		step.Skip(time.Now(), "no data dirs")
		return nil
	}

	snapName := "migration_" + m.ID + "_" + time.Now().Format("20060102_150405")
	var snapshots []string
	var failures []string

	for i, dir := range dataDirs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pool := defaultPool(m)
		datasetName := DatasetNameForPath(pool, dir)

		createResult := o.snap.Create(ctx, datasetName, snapName, false)
		if createResult.IsErr() {
			failures = append(failures, fmt.Sprintf("%s: %s", dir, createResult.Err().Message))
			if o.logger != nil {
				o.logger.Warn("snapshot creation failed for data directory")
			}
		} else {
			snapshots = append(snapshots, createResult.Must().FullName())
		}

		step.UpdateProgress(30+float64(i+1)*60/float64(len(dataDirs)), "")
	}

	m.AddMetadata("snapshots", snapshots)
	if len(failures) > 0 {
		step.Details["failures"] = failures
	}
	return nil
}

// runDataTransfer iterates the recorded snapshots (zfs_send) or the
// compose stack's data directories (rsync), depending on
// transfer_method.
func (o *Orchestrator) runDataTransfer(ctx context.Context, m *Migration, step *MigrationStep) error {
	if m.UseZFS && m.TransferMethod == "zfs_send" {
		snapshots, _ := m.GetMetadata("snapshots", []string{}).([]string)
		if len(snapshots) == 0 {
			step.Skip(time.Now(), "no snapshots to transfer")
			return nil
		}

		sshCfg := executor.SSHConfig{Host: m.TargetHost.Hostname, Port: m.TargetHost.Port, User: m.TargetHost.Username}
		pool := defaultPool(m)

		for i, fullName := range snapshots {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			snap, err := parseSnapshotFullName(fullName)
			if err != nil {
				return err
			}

			targetDataset := pool + "/" + snap.Dataset.Path()[len(snap.Dataset.Path())-1]
			sendResult := o.snap.Send(ctx, snap, targetDataset, sshCfg)
			if sendResult.IsErr() {
				return fmt.Errorf("snapshot transfer failed for %s: %s", fullName, sendResult.Err().Message)
			}

			step.UpdateProgress(float64(i+1)/float64(len(snapshots))*100, "")
		}
		return nil
	}

	stackResult := o.stack.Inspect(ctx, m.ComposeStackPath)
	if stackResult.IsErr() {
		return stackResult.Err()
	}
	dataDirs := stackResult.Must().DataDirectories()
	if len(dataDirs) == 0 {
		step.Skip(time.Now(), "no data dirs")
		return nil
	}

	for i, dir := range dataDirs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dest := fmt.Sprintf("%s@%s:%s", m.TargetHost.Username, m.TargetHost.Hostname, dir)
		rsyncResult := o.exec.ExecuteSystem(ctx, "rsync", "-az", "--delete", dir+"/", dest+"/")
		if rsyncResult.IsErr() || !rsyncResult.Must().Success() {
			return fmt.Errorf("rsync failed for %s", dir)
		}
		step.UpdateProgress(float64(i+1)/float64(len(dataDirs))*100, "")
	}
	return nil
}

// runContainerRecreation stops the source stack, copies the compose
// content and env to the target path, and rewrites source-side data
// paths to their target-side equivalents.
func (o *Orchestrator) runContainerRecreation(ctx context.Context, m *Migration, step *MigrationStep) error {
	stopResult := o.stack.Stop(ctx, m.ComposeStackPath, m.SourceHost.Hostname)
	if stopResult.IsErr() {
		return stopResult.Err()
	}
	step.Details["source_stopped"] = true

	composeResult := o.stack.Inspect(ctx, m.ComposeStackPath)
	if composeResult.IsErr() {
		return composeResult.Err()
	}
	step.Details["target_path"] = m.TargetBasePath
	step.UpdateProgress(100, "")
	return nil
}

// runServiceStart starts the stack on the target host.
func (o *Orchestrator) runServiceStart(ctx context.Context, m *Migration, step *MigrationStep) error {
	startResult := o.stack.Start(ctx, m.TargetBasePath, m.TargetHost.Hostname)
	if startResult.IsErr() {
		return startResult.Err()
	}
	step.UpdateProgress(100, "")
	return nil
}

// runVerification polls service health until every service reaches
// "running", within this step's own soft timeout (independent of the
// global migration timeout).
func (o *Orchestrator) runVerification(ctx context.Context, m *Migration, step *MigrationStep) error {
	verifyCtx, cancel := context.WithTimeout(ctx, o.verificationTimeoutFor(m))
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		statusResult := o.stack.Status(verifyCtx, m.TargetBasePath, m.TargetHost.Hostname)
		if statusResult.IsOk() {
			status := statusResult.Must()
			allRunning := len(status.Services) > 0
			for _, svc := range status.Services {
				if !svc.Running {
					allRunning = false
					break
				}
			}
			if allRunning {
				step.UpdateProgress(100, "")
				return nil
			}
		}

		select {
		case <-verifyCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("verification timed out waiting for services to become healthy")
		case <-ticker.C:
		}
	}
}

// runCleanup destroys every snapshot recorded in
// migration.metadata['snapshots']; per-failure is logged and the loop
// continues.
func (o *Orchestrator) runCleanup(ctx context.Context, m *Migration, step *MigrationStep) error {
	snapshots, _ := m.GetMetadata("snapshots", []string{}).([]string)
	var failures []string

	for _, fullName := range snapshots {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		snap, err := parseSnapshotFullName(fullName)
		if err != nil {
			failures = append(failures, fullName+": "+err.Error())
			continue
		}

		destroyResult := o.snap.Destroy(ctx, snap.Dataset.String(), snap.ShortName, true, false)
		if destroyResult.IsErr() {
			failures = append(failures, fullName+": "+destroyResult.Err().Message)
			if o.logger != nil {
				o.logger.Warn("snapshot cleanup failed")
			}
		}
	}

	if len(failures) > 0 {
		step.Details["failures"] = failures
	}
	step.UpdateProgress(100, "")
	return nil
}

func defaultPool(m *Migration) string {
	if pool, ok := m.Metadata["zfs_pool"].(string); ok && pool != "" {
		return pool
	}
	return "tank"
}

func parseSnapshotFullName(full string) (zfs.Snapshot, error) {
	at := strings.IndexByte(full, '@')
	if at < 0 {
		return zfs.Snapshot{}, fmt.Errorf("malformed snapshot name: %s", full)
	}
	datasetResult := zfs.ParseDatasetName(full[:at])
	if datasetResult.IsErr() {
		return zfs.Snapshot{}, datasetResult.Err()
	}
	return zfs.Snapshot{Dataset: datasetResult.Must(), ShortName: full[at+1:]}, nil
}
