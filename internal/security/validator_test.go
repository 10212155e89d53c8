package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDatasetName(t *testing.T) {
	assert.True(t, ValidateDatasetName("tank/data").IsOk())
	assert.True(t, ValidateDatasetName("").IsErr())
	assert.True(t, ValidateDatasetName("/tank/data").IsErr())
	assert.True(t, ValidateDatasetName("tank/data/").IsErr())
	assert.True(t, ValidateDatasetName("tank/../etc").IsErr())
	assert.True(t, ValidateDatasetName("tank;rm -rf /").IsErr())
}

func TestValidateSnapshotName(t *testing.T) {
	assert.True(t, ValidateSnapshotName("tank/data@backup-1").IsOk())
	assert.True(t, ValidateSnapshotName("tank/data").IsErr())
	assert.True(t, ValidateSnapshotName("tank/data@back@up").IsErr())
	assert.True(t, ValidateSnapshotName("bad name@@@whatever@x").IsErr())
}

func TestValidateHostname(t *testing.T) {
	cases := map[string]bool{
		"localhost":      true,
		"db.example.com": true,
		"192.168.1.10":   true,
		"256.1.1.1":      false,
		"::1":            true,
		"-bad-.com":      false,
		"":               false,
	}
	for host, wantOK := range cases {
		got := ValidateHostname(host).IsOk()
		assert.Equal(t, wantOK, got, "host=%q", host)
	}
}

func TestValidateUsername(t *testing.T) {
	assert.True(t, ValidateUsername("deploy").IsOk())
	assert.True(t, ValidateUsername("root").IsOk())
	assert.True(t, ValidateUsername("Deploy").IsErr())
	assert.True(t, ValidateUsername("").IsErr())
}

func TestValidatePort(t *testing.T) {
	assert.True(t, ValidatePort(22).IsOk())
	assert.True(t, ValidatePort(65535).IsOk())
	assert.True(t, ValidatePort(0).IsErr())
	assert.True(t, ValidatePort(65536).IsErr())
}

func TestValidatePath(t *testing.T) {
	assert.True(t, ValidatePath("/srv/myapp/data").IsOk())
	assert.True(t, ValidatePath("relative/path").IsErr())
	assert.True(t, ValidatePath("/srv/../etc/passwd").IsErr())
	assert.True(t, ValidatePath("/srv/$(whoami)").IsErr())
}

func TestValidateZFSProperty(t *testing.T) {
	assert.True(t, ValidateZFSProperty("compression", "lz4").IsOk())
	assert.True(t, ValidateZFSProperty("compression", "nonsense").IsErr())
	assert.True(t, ValidateZFSProperty("not_a_real_property", "x").IsErr())
	assert.True(t, ValidateZFSProperty("quota", "10G").IsOk())
	assert.True(t, ValidateZFSProperty("quota", "none").IsOk())
}

func TestEscapeShellArgument(t *testing.T) {
	assert.Equal(t, "'hello'", EscapeShellArgument("hello"))
	assert.Equal(t, `'it'"'"'s'`, EscapeShellArgument("it's"))
}
