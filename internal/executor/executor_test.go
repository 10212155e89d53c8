package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteZFSRejectsUnknownSubcommand(t *testing.T) {
	e := New(nil, time.Second, "")
	r := e.ExecuteZFS(context.Background(), "not-a-real-subcommand")
	require.True(t, r.IsOk())
	cmd := r.Must()
	assert.False(t, cmd.Success())
	assert.Contains(t, cmd.Stderr, "not in the allow-list")
}

func TestExecuteSystemRejectsUnknownCommand(t *testing.T) {
	e := New(nil, time.Second, "")
	r := e.ExecuteSystem(context.Background(), "curl", "https://example.com")
	require.True(t, r.IsOk())
	assert.False(t, r.Must().Success())
}

func TestExecuteRemoteLocalhostRunsDirectly(t *testing.T) {
	e := New(nil, 5*time.Second, "")
	r := e.ExecuteRemote(context.Background(), SSHConfig{Host: "localhost"}, []string{"true"})
	require.True(t, r.IsOk())
	assert.True(t, r.Must().Success())
}

func TestExecuteRemoteEmptyHostRunsDirectly(t *testing.T) {
	e := New(nil, 5*time.Second, "")
	r := e.ExecuteRemote(context.Background(), SSHConfig{}, []string{"false"})
	require.True(t, r.IsOk())
	assert.Equal(t, 1, r.Must().ExitCode)
}

func TestCommandResultSuccess(t *testing.T) {
	assert.True(t, CommandResult{ExitCode: 0}.Success())
	assert.False(t, CommandResult{ExitCode: 1}.Success())
}

func TestRedactArgvHidesKeyFile(t *testing.T) {
	out := redactArgv([]string{"-i", "/home/user/.ssh/id_rsa", "-p", "22"})
	assert.Equal(t, "***REDACTED***", out[1])
	assert.Equal(t, "-p", out[2])
}
