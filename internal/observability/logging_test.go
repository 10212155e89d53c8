package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultsOnBadLevel(t *testing.T) {
	logger, err := NewLogger("not-a-level")
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestRedactStringMasksKeyValuePairs(t *testing.T) {
	assert.Equal(t, "user=alice password=***REDACTED***", RedactString("user=alice password=hunter2"))
	assert.Equal(t, "no secrets here", RedactString("no secrets here"))
}

func TestRedactEnvMasksSensitiveKeys(t *testing.T) {
	env := RedactEnv([]string{"HOME=/root", "API_KEY=abc123", "DB_PASSWORD=letmein"})
	assert.Equal(t, "HOME=/root", env[0])
	assert.Equal(t, "API_KEY=***REDACTED***", env[1])
	assert.Equal(t, "DB_PASSWORD=***REDACTED***", env[2])
}
