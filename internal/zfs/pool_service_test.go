package zfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoolListRow(t *testing.T) {
	row := "tank\t1T\t500G\t500G\t0\t23%\tONLINE\t1.00x"
	pool, ok := parsePoolListRow(row, nil)
	require.True(t, ok)

	assert.Equal(t, "tank", pool.Name)
	assert.Equal(t, 23.0, pool.Fragmentation)
	assert.Equal(t, PoolOnline, pool.State)
	assert.Equal(t, 1.0, pool.Dedup)
}

func TestParsePoolListRowDegraded(t *testing.T) {
	row := "tank\t1T\t950G\t50G\t0\t5%\tDEGRADED\t1.20x"
	pool, ok := parsePoolListRow(row, nil)
	require.True(t, ok)

	assert.Equal(t, PoolDegraded, pool.State)
	assert.Equal(t, 5.0, pool.Fragmentation)
	assert.Equal(t, 1.20, pool.Dedup)
	assert.Equal(t, HealthCritical, pool.DeriveHealth())
}

func TestParsePoolListRowTooFewColumns(t *testing.T) {
	_, ok := parsePoolListRow("tank\t1T\t500G", nil)
	assert.False(t, ok)
}

func TestParseVDevLine(t *testing.T) {
	v, ok := parseVDevLine("mirror-0        ONLINE       0     0     0")
	require.True(t, ok)
	assert.Equal(t, "mirror-0", v.Name)
	assert.Equal(t, "ONLINE", v.State)
	assert.Equal(t, 0, v.ReadErrors)
	assert.Equal(t, 0, v.WriteErrors)
	assert.Equal(t, 0, v.ChecksumErrors)
}

func TestParseVDevLineWithErrors(t *testing.T) {
	v, ok := parseVDevLine("sda             DEGRADED     2     1     4")
	require.True(t, ok)
	assert.Equal(t, "sda", v.Name)
	assert.Equal(t, "DEGRADED", v.State)
	assert.Equal(t, 2, v.ReadErrors)
	assert.Equal(t, 1, v.WriteErrors)
	assert.Equal(t, 4, v.ChecksumErrors)
}

func TestParseVDevLineSkipsHeader(t *testing.T) {
	_, ok := parseVDevLine("NAME        STATE     READ WRITE CKSUM")
	assert.False(t, ok)
}

func TestParsePoolStatusExtractsVDevsAndScan(t *testing.T) {
	stdout := `  pool: tank
 state: ONLINE
  scan: scrub in progress since Mon Jul 27 10:00:00 2026
config:

	NAME        STATE     READ WRITE CKSUM
	tank        ONLINE       0     0     0
	  mirror-0  ONLINE       0     0     0
	    sda     ONLINE       0     0     0
	    sdb     ONLINE       0     0     0

errors: No known data errors
`
	vdevs, scan := parsePoolStatus(stdout)
	require.Len(t, vdevs, 4)
	assert.Equal(t, "tank", vdevs[0].Name)
	assert.Equal(t, "ONLINE", vdevs[0].State)
	require.NotNil(t, scan)
	assert.True(t, scan.InProgress)
}

func TestPoolDeriveHealthFaultedAndOffline(t *testing.T) {
	assert.Equal(t, HealthFailed, Pool{State: PoolFaulted}.DeriveHealth())
	assert.Equal(t, HealthCritical, Pool{State: PoolOffline}.DeriveHealth())
	assert.Equal(t, HealthCritical, Pool{State: PoolUnavail}.DeriveHealth())
	assert.Equal(t, HealthCritical, Pool{State: PoolSuspended}.DeriveHealth())
}

func TestPoolDeriveHealthByCapacity(t *testing.T) {
	healthy := Pool{State: PoolOnline, Size: mustSize("100G"), Allocated: mustSize("50G")}
	assert.Equal(t, HealthHealthy, healthy.DeriveHealth())

	warning := Pool{State: PoolOnline, Size: mustSize("100G"), Allocated: mustSize("90G")}
	assert.Equal(t, HealthWarning, warning.DeriveHealth())

	critical := Pool{State: PoolOnline, Size: mustSize("100G"), Allocated: mustSize("96G")}
	assert.Equal(t, HealthCritical, critical.DeriveHealth())
}
