package containerstack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvFile(t *testing.T) {
	env := parseEnvFile([]byte("# comment\nFOO=bar\nQUOTED=\"baz\"\n\nBAD_LINE\n"))
	assert.Equal(t, "bar", env["FOO"])
	assert.Equal(t, "baz", env["QUOTED"])
	_, hasBadLine := env["BAD_LINE"]
	assert.False(t, hasBadLine)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"/a", "/b"}, dedupe([]string{"/a", "/b", "/a"}))
	assert.Empty(t, dedupe(nil))
}

func writeComposeFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadComposeStackExtractsBindMounts(t *testing.T) {
	dir := t.TempDir()
	path := writeComposeFile(t, dir, `
services:
  web:
    image: nginx:latest
    volumes:
      - /srv/myapp/data:/data
      - /srv/myapp/config:/config:ro
      - named-volume:/var/lib/data
  db:
    image: postgres:16
    volumes:
      - /srv/myapp/data:/var/lib/postgresql/data
volumes:
  named-volume:
`)

	stackResult := loadComposeStack(path)
	require.True(t, stackResult.IsOk())
	stack := stackResult.Must()

	assert.ElementsMatch(t, []string{"web", "db"}, stack.Services)
	assert.ElementsMatch(t, []string{"/srv/myapp/data", "/srv/myapp/config"}, stack.DataDirectories())
	assert.Contains(t, stack.Volumes, "named-volume")
	assert.Equal(t, []string{"named-volume"}, stack.NamedVolumeNames())
}

func TestLoadComposeStackMissingFile(t *testing.T) {
	stackResult := loadComposeStack("/nonexistent/docker-compose.yml")
	assert.True(t, stackResult.IsErr())
	assert.Equal(t, "COMPOSE_FILE_NOT_FOUND", stackResult.Err().Code)
}

func TestLoadComposeStackMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeComposeFile(t, dir, "not: [valid")
	stackResult := loadComposeStack(path)
	assert.True(t, stackResult.IsErr())
}

func TestExternalVolumesDetectsExternalFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeComposeFile(t, dir, `
services:
  web:
    image: nginx:latest
    volumes:
      - shared-data:/data
volumes:
  shared-data:
    external: true
`)
	isExternal, err := externalVolumes(path)
	require.NoError(t, err)
	assert.True(t, isExternal)
}

func TestExternalVolumesFalseWhenNoneExternal(t *testing.T) {
	dir := t.TempDir()
	path := writeComposeFile(t, dir, `
services:
  web:
    image: nginx:latest
`)
	isExternal, err := externalVolumes(path)
	require.NoError(t, err)
	assert.False(t, isExternal)
}
