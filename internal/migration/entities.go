package migration

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transdock/transdock/internal/result"
	"github.com/transdock/transdock/internal/security"
)

// MigrationStatus is the closed set of lifecycle states a Migration
// passes through. rolling_back/rolled_back are kept for wire
// compatibility with older clients; no orchestrator path currently
// drives a migration into either state.
type MigrationStatus string

const (
	StatusPending              MigrationStatus = "pending"
	StatusPreparing            MigrationStatus = "preparing"
	StatusCreatingSnapshots    MigrationStatus = "creating_snapshots"
	StatusTransferringData     MigrationStatus = "transferring_data"
	StatusRecreatingContainers MigrationStatus = "recreating_containers"
	StatusStartingServices     MigrationStatus = "starting_services"
	StatusVerifying            MigrationStatus = "verifying"
	StatusCompleted            MigrationStatus = "completed"
	StatusFailed               MigrationStatus = "failed"
	StatusCancelled            MigrationStatus = "cancelled"
	StatusRollingBack          MigrationStatus = "rolling_back"
	StatusRolledBack           MigrationStatus = "rolled_back"
)

func (s MigrationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusCreatingSnapshots, StatusTransferringData,
		StatusRecreatingContainers, StatusStartingServices, StatusVerifying,
		StatusCompleted, StatusFailed, StatusCancelled, StatusRollingBack, StatusRolledBack:
		return true
	}
	return false
}

// MigrationStepType enumerates the fixed step pipeline.
type MigrationStepType string

const (
	StepValidation           MigrationStepType = "validation"
	StepSnapshotCreation     MigrationStepType = "snapshot_creation"
	StepDataTransfer         MigrationStepType = "data_transfer"
	StepContainerRecreation  MigrationStepType = "container_recreation"
	StepServiceStart         MigrationStepType = "service_start"
	StepVerification         MigrationStepType = "verification"
	StepCleanup              MigrationStepType = "cleanup"
)

// MigrationStepStatus is the per-step lifecycle state.
type MigrationStepStatus string

const (
	StepStatusPending   MigrationStepStatus = "pending"
	StepStatusRunning   MigrationStepStatus = "running"
	StepStatusCompleted MigrationStepStatus = "completed"
	StepStatusFailed    MigrationStepStatus = "failed"
	StepStatusSkipped   MigrationStepStatus = "skipped"
)

// MigrationStep is one unit of the migration pipeline.
type MigrationStep struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	StepType           MigrationStepType      `json:"step_type"`
	Status             MigrationStepStatus    `json:"status"`
	StartedAt          *time.Time             `json:"started_at,omitempty"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
	ErrorMessage       string                 `json:"error_message,omitempty"`
	Details            map[string]any         `json:"details"`
	ProgressPercentage float64                `json:"progress_percentage"`
}

// NewMigrationStep constructs a pending step with a random id.
func NewMigrationStep(name string, stepType MigrationStepType) MigrationStep {
	return MigrationStep{
		ID:       uuid.NewString(),
		Name:     name,
		StepType: stepType,
		Status:   StepStatusPending,
		Details:  make(map[string]any),
	}
}

func (s *MigrationStep) Start(now time.Time) {
	s.Status = StepStatusRunning
	s.StartedAt = &now
	s.ProgressPercentage = 0
}

func (s *MigrationStep) Complete(now time.Time, details map[string]any) {
	s.Status = StepStatusCompleted
	s.CompletedAt = &now
	s.ProgressPercentage = 100
	s.mergeDetails(details)
}

func (s *MigrationStep) Fail(now time.Time, errMessage string, details map[string]any) {
	s.Status = StepStatusFailed
	s.CompletedAt = &now
	s.ErrorMessage = errMessage
	s.mergeDetails(details)
}

func (s *MigrationStep) Skip(now time.Time, reason string) {
	s.Status = StepStatusSkipped
	s.CompletedAt = &now
	s.ProgressPercentage = 100
	if s.Details == nil {
		s.Details = make(map[string]any)
	}
	s.Details["skip_reason"] = reason
}

func (s *MigrationStep) UpdateProgress(percentage float64, message string) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	s.ProgressPercentage = percentage
	if message != "" {
		if s.Details == nil {
			s.Details = make(map[string]any)
		}
		s.Details["progress_message"] = message
	}
}

func (s *MigrationStep) mergeDetails(details map[string]any) {
	if len(details) == 0 {
		return
	}
	if s.Details == nil {
		s.Details = make(map[string]any)
	}
	for k, v := range details {
		s.Details[k] = v
	}
}

// Duration returns the step's elapsed time, or nil if not yet
// finished.
func (s *MigrationStep) Duration() *float64 {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return nil
	}
	d := s.CompletedAt.Sub(*s.StartedAt).Seconds()
	return &d
}

func (s *MigrationStep) IsRunning() bool   { return s.Status == StepStatusRunning }
func (s *MigrationStep) IsCompleted() bool { return s.Status == StepStatusCompleted }
func (s *MigrationStep) IsFailed() bool    { return s.Status == StepStatusFailed }

// HostConnection is an immutable SSH endpoint descriptor: [username@]hostname[:port].
type HostConnection struct {
	Hostname string
	Username string
	Port     int
}

// NewHostConnection validates and constructs a HostConnection,
// defaulting Username to "root" and Port to 22.
func NewHostConnection(hostname, username string, port int) result.Result[HostConnection] {
	if username == "" {
		username = "root"
	}
	if port == 0 {
		port = 22
	}
	if r := security.ValidateHostname(hostname); r.IsErr() {
		return result.Fail[HostConnection](r.Err())
	}
	if r := security.ValidateUsername(username); r.IsErr() {
		return result.Fail[HostConnection](r.Err())
	}
	if r := security.ValidatePort(port); r.IsErr() {
		return result.Fail[HostConnection](r.Err())
	}
	return result.Ok(HostConnection{Hostname: hostname, Username: username, Port: port})
}

// Localhost returns a HostConnection pointed at localhost.
func Localhost() HostConnection {
	return HostConnection{Hostname: "localhost", Username: "root", Port: 22}
}

// ParseHostConnection parses "[username@]hostname[:port]".
func ParseHostConnection(connectionString string) result.Result[HostConnection] {
	username := "root"
	port := 22

	hostPart := connectionString
	if at := strings.Index(connectionString, "@"); at >= 0 {
		username = connectionString[:at]
		hostPart = connectionString[at+1:]
	}

	hostname := hostPart
	if colon := strings.LastIndex(hostPart, ":"); colon >= 0 {
		hostname = hostPart[:colon]
		portStr := hostPart[colon+1:]
		parsed, err := strconv.Atoi(portStr)
		if err != nil {
			return result.Fail[HostConnection](result.Validation("INVALID_PORT", fmt.Sprintf("invalid port: %s", portStr)).WithField("port"))
		}
		port = parsed
	}

	return NewHostConnection(hostname, username, port)
}

// String renders "username@hostname" or "username@hostname:port" when
// the port is non-default.
func (h HostConnection) String() string {
	if h.Port == 22 {
		return fmt.Sprintf("%s@%s", h.Username, h.Hostname)
	}
	return fmt.Sprintf("%s@%s:%d", h.Username, h.Hostname, h.Port)
}

// SSHURL renders "ssh://username@hostname:port".
func (h HostConnection) SSHURL() string {
	return fmt.Sprintf("ssh://%s@%s:%d", h.Username, h.Hostname, h.Port)
}

// IsLocalhost reports whether this connection targets the local host.
func (h HostConnection) IsLocalhost() bool {
	switch strings.ToLower(h.Hostname) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func (h HostConnection) WithUsername(username string) HostConnection {
	h.Username = username
	return h
}

func (h HostConnection) WithPort(port int) HostConnection {
	h.Port = port
	return h
}

// Migration is the root aggregate tracking one stack relocation from
// source_host to target_host.
type Migration struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Status             MigrationStatus   `json:"status"`
	SourceHost         HostConnection    `json:"source_host"`
	TargetHost         HostConnection    `json:"target_host"`
	ComposeStackPath   string            `json:"compose_stack_path"`
	TargetBasePath     string            `json:"target_base_path"`
	UseZFS             bool              `json:"use_zfs"`
	TransferMethod     string            `json:"transfer_method"` // zfs_send or rsync
	CleanupOnSuccess   bool              `json:"cleanup_on_success"`
	VerifyTransfer     bool              `json:"verify_transfer"`
	CreateBackupSnapshot bool            `json:"create_backup_snapshot"`
	CreatedAt          time.Time         `json:"created_at"`
	StartedAt          *time.Time        `json:"started_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	Steps              []MigrationStep   `json:"steps"`
	Metadata           map[string]any    `json:"metadata"`
}

// NewMigration constructs a pending Migration with defaults applied.
func NewMigration(name string, source, target HostConnection, composeStackPath, targetBasePath string, now time.Time) *Migration {
	return &Migration{
		ID:                   uuid.NewString(),
		Name:                 name,
		Status:               StatusPending,
		SourceHost:           source,
		TargetHost:           target,
		ComposeStackPath:     composeStackPath,
		TargetBasePath:       targetBasePath,
		UseZFS:               true,
		TransferMethod:       "zfs_send",
		CleanupOnSuccess:     true,
		VerifyTransfer:       true,
		CreateBackupSnapshot: true,
		CreatedAt:            now,
		Metadata:             make(map[string]any),
	}
}

func (m *Migration) Start(now time.Time) {
	m.Status = StatusPreparing
	m.StartedAt = &now
}

func (m *Migration) Complete(now time.Time) {
	m.Status = StatusCompleted
	m.CompletedAt = &now
}

func (m *Migration) Fail(now time.Time, errMessage string) {
	m.Status = StatusFailed
	m.CompletedAt = &now
	m.ErrorMessage = errMessage
}

func (m *Migration) Cancel(now time.Time) {
	m.Status = StatusCancelled
	m.CompletedAt = &now
}

func (m *Migration) UpdateStatus(status MigrationStatus) {
	m.Status = status
}

func (m *Migration) AddStep(step MigrationStep) {
	m.Steps = append(m.Steps, step)
}

func (m *Migration) CurrentStep() *MigrationStep {
	for i := range m.Steps {
		if m.Steps[i].IsRunning() {
			return &m.Steps[i]
		}
	}
	return nil
}

func (m *Migration) FailedStep() *MigrationStep {
	for i := range m.Steps {
		if m.Steps[i].IsFailed() {
			return &m.Steps[i]
		}
	}
	return nil
}

func (m *Migration) CompletedSteps() []MigrationStep {
	var out []MigrationStep
	for _, s := range m.Steps {
		if s.IsCompleted() {
			out = append(out, s)
		}
	}
	return out
}

func (m *Migration) PendingSteps() []MigrationStep {
	var out []MigrationStep
	for _, s := range m.Steps {
		if s.Status == StepStatusPending {
			out = append(out, s)
		}
	}
	return out
}

// Duration returns the migration's elapsed time, or nil if not yet
// finished.
func (m *Migration) Duration() *float64 {
	if m.StartedAt == nil || m.CompletedAt == nil {
		return nil
	}
	d := m.CompletedAt.Sub(*m.StartedAt).Seconds()
	return &d
}

// ProgressPercentage is the mean of all step progress percentages.
func (m *Migration) ProgressPercentage() float64 {
	if len(m.Steps) == 0 {
		return 0
	}
	var total float64
	for _, s := range m.Steps {
		total += s.ProgressPercentage
	}
	return total / float64(len(m.Steps))
}

func (m *Migration) IsCompleted() bool { return m.Status == StatusCompleted }
func (m *Migration) IsFailed() bool    { return m.Status == StatusFailed }

// IsRunning reports whether the migration is in any non-terminal,
// non-pending state.
func (m *Migration) IsRunning() bool {
	switch m.Status {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled, StatusRolledBack:
		return false
	}
	return true
}

func (m *Migration) CanBeCancelled() bool { return m.IsRunning() }

func (m *Migration) CanBeRetried() bool {
	return m.Status == StatusFailed || m.Status == StatusCancelled
}

// EstimatedRemainingSeconds implements the original mean-step-duration
// estimator: average completed-step duration times pending-step count,
// plus a pro-rated remainder for any step currently in progress.
func (m *Migration) EstimatedRemainingSeconds() *float64 {
	completed := m.CompletedSteps()
	if len(completed) == 0 || m.StartedAt == nil {
		return nil
	}

	var totalDuration float64
	for _, s := range completed {
		if d := s.Duration(); d != nil {
			totalDuration += *d
		}
	}
	if totalDuration == 0 {
		return nil
	}

	avgStepDuration := totalDuration / float64(len(completed))
	remainingSteps := float64(len(m.PendingSteps()))

	if current := m.CurrentStep(); current != nil && current.ProgressPercentage > 0 {
		currentRemaining := (100 - current.ProgressPercentage) / 100 * avgStepDuration
		total := remainingSteps*avgStepDuration + currentRemaining
		return &total
	}

	total := remainingSteps * avgStepDuration
	return &total
}

// Summary renders the dashboard-facing projection of a Migration,
// matching the wire shape clients poll for progress.
func (m *Migration) Summary() map[string]any {
	completed := m.CompletedSteps()
	summary := map[string]any{
		"id":                   m.ID,
		"name":                 m.Name,
		"status":               string(m.Status),
		"progress_percentage":  roundTo2(m.ProgressPercentage()),
		"source_host":          m.SourceHost.String(),
		"target_host":          m.TargetHost.String(),
		"compose_stack_path":   m.ComposeStackPath,
		"target_base_path":     m.TargetBasePath,
		"use_zfs":              m.UseZFS,
		"transfer_method":      m.TransferMethod,
		"created_at":           m.CreatedAt,
		"started_at":           m.StartedAt,
		"completed_at":         m.CompletedAt,
		"duration":             m.Duration(),
		"steps_completed":      len(completed),
		"total_steps":          len(m.Steps),
		"error_message":        m.ErrorMessage,
	}

	if current := m.CurrentStep(); current != nil {
		summary["current_step"] = map[string]any{
			"name":     current.Name,
			"type":     string(current.StepType),
			"progress": current.ProgressPercentage,
		}
	}

	if failed := m.FailedStep(); failed != nil {
		summary["failed_step"] = map[string]any{
			"name":  failed.Name,
			"type":  string(failed.StepType),
			"error": failed.ErrorMessage,
		}
	}

	return summary
}

func (m *Migration) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

func (m *Migration) GetMetadata(key string, def any) any {
	if v, ok := m.Metadata[key]; ok {
		return v
	}
	return def
}

func roundTo2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
