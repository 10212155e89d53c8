package containerstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeStackDataDirectoriesIsDefensiveCopy(t *testing.T) {
	stack := ComposeStack{bindMounts: []string{"/srv/myapp/data", "/srv/myapp/config"}}
	dirs := stack.DataDirectories()
	assert.Equal(t, []string{"/srv/myapp/data", "/srv/myapp/config"}, dirs)

	dirs[0] = "mutated"
	assert.Equal(t, []string{"/srv/myapp/data", "/srv/myapp/config"}, stack.DataDirectories())
}

func TestComposeStackDataDirectoriesEmpty(t *testing.T) {
	stack := ComposeStack{}
	assert.Empty(t, stack.DataDirectories())
}

func TestComposeStackDataDirectoriesIncludesResolvedNamedVolumes(t *testing.T) {
	stack := ComposeStack{
		bindMounts:       []string{"/srv/myapp/config"},
		namedVolumeNames: []string{"myapp-data"},
	}
	resolved := stack.WithNamedVolumeMountpoints([]string{"/var/lib/docker/volumes/myapp-data/_data"})

	assert.ElementsMatch(t, []string{"/srv/myapp/config", "/var/lib/docker/volumes/myapp-data/_data"}, resolved.DataDirectories())
	assert.Equal(t, []string{"myapp-data"}, resolved.NamedVolumeNames())
}

func TestComposeStackNamedVolumeNamesIsDefensiveCopy(t *testing.T) {
	stack := ComposeStack{namedVolumeNames: []string{"a", "b"}}
	names := stack.NamedVolumeNames()
	names[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, stack.NamedVolumeNames())
}
