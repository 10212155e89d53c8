package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatasetNameForPath(t *testing.T) {
	assert.Equal(t, "tank/srv_myapp_data", DatasetNameForPath("tank", "/srv/myapp/data"))
	assert.Equal(t, "tank/data", DatasetNameForPath("tank", "data"))
	assert.Equal(t, "rpool/a_b_c", DatasetNameForPath("rpool", "/a/b/c/"))
}

func TestDatasetNameForPathCollision(t *testing.T) {
	// Documented lossiness: distinct paths with underscores already in
	// them can collide with slash-separated ones.
	assert.Equal(t, DatasetNameForPath("tank", "/a/b_c"), DatasetNameForPath("tank", "/a/b/c"))
}
