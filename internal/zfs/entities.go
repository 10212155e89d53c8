package zfs

import "time"

// Dataset is a value projection of a row from `zfs list`.
type Dataset struct {
	Name        DatasetName
	Used        SizeValue
	Available   SizeValue
	Referenced  SizeValue
	Compression string
	Checksum    string
	Properties  map[string]string
}

// Snapshot is a value projection of a row from `zfs list -t snapshot`.
type Snapshot struct {
	Dataset    DatasetName
	ShortName  string
	Created    time.Time
	Used       SizeValue
	Referenced SizeValue
	Clones     []string
}

// FullName renders "dataset@short".
func (s Snapshot) FullName() string {
	return s.Dataset.String() + "@" + s.ShortName
}

// HasClones reports whether any clone depends on this snapshot.
func (s Snapshot) HasClones() bool { return len(s.Clones) > 0 }

// PoolState is the closed set of states `zpool` reports.
type PoolState string

const (
	PoolOnline    PoolState = "ONLINE"
	PoolOffline   PoolState = "OFFLINE"
	PoolDegraded  PoolState = "DEGRADED"
	PoolFaulted   PoolState = "FAULTED"
	PoolRemoved   PoolState = "REMOVED"
	PoolUnavail   PoolState = "UNAVAIL"
	PoolSuspended PoolState = "SUSPENDED"
)

// PoolHealth is TransDock's derived health classification, distinct
// from the raw PoolState.
type PoolHealth string

const (
	HealthHealthy  PoolHealth = "HEALTHY"
	HealthWarning  PoolHealth = "WARNING"
	HealthCritical PoolHealth = "CRITICAL"
	HealthFailed   PoolHealth = "FAILED"
)

// VDev is a virtual device inside a pool with its error counters.
type VDev struct {
	Name          string
	State         string
	ReadErrors    int
	WriteErrors   int
	ChecksumErrors int
	Children      []VDev
}

// ScanStats summarizes an in-progress or completed scrub/resilver.
type ScanStats struct {
	InProgress     bool
	PercentDone    float64
	BytesScanned   uint64
	BytesToScan    uint64
	ErrorsFound    int
}

// Pool is a value projection of `zpool list`/`zpool status` output.
type Pool struct {
	Name       string
	State      PoolState
	Size       SizeValue
	Allocated  SizeValue
	Free       SizeValue
	Expandsize SizeValue
	Fragmentation float64
	Dedup      float64
	VDevs      []VDev
	Properties map[string]string
	Scan       *ScanStats
}

// CapacityPercent returns allocated/size*100, or 0 if size is zero.
func (p Pool) CapacityPercent() float64 {
	if p.Size.Bytes() == 0 {
		return 0
	}
	return float64(p.Allocated.Bytes()) / float64(p.Size.Bytes()) * 100
}

// HasVDevErrors reports whether any vdev has a nonzero error counter.
func (p Pool) HasVDevErrors() bool {
	for _, v := range p.VDevs {
		if v.ReadErrors > 0 || v.WriteErrors > 0 || v.ChecksumErrors > 0 {
			return true
		}
	}
	return false
}

// DeriveHealth implements the health_check mapping:
// FAULTED -> FAILED; OFFLINE/UNAVAIL/SUSPENDED -> CRITICAL;
// DEGRADED or any vdev errors or capacity>=95% -> CRITICAL;
// capacity>=85% or nonzero errors -> WARNING; else HEALTHY.
func (p Pool) DeriveHealth() PoolHealth {
	switch p.State {
	case PoolFaulted:
		return HealthFailed
	case PoolOffline, PoolUnavail, PoolSuspended:
		return HealthCritical
	}

	capacity := p.CapacityPercent()
	hasErrors := p.HasVDevErrors()

	if p.State == PoolDegraded || hasErrors || capacity >= 95 {
		return HealthCritical
	}
	if capacity >= 85 || hasErrors {
		return HealthWarning
	}
	return HealthHealthy
}
