package zfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatasetName(t *testing.T) {
	nameResult := ParseDatasetName("tank/apps/myapp")
	require.True(t, nameResult.IsOk())
	name := nameResult.Must()
	assert.Equal(t, "tank", name.Pool())
	assert.Equal(t, []string{"apps", "myapp"}, name.Path())
	assert.Equal(t, "tank/apps/myapp", name.String())
}

func TestParseDatasetNameRejectsInvalid(t *testing.T) {
	assert.True(t, ParseDatasetName("/tank/data").IsErr())
}

func TestNewDatasetNamePoolRoot(t *testing.T) {
	name := NewDatasetName("tank")
	assert.True(t, name.IsPoolRoot())
	assert.Equal(t, "tank", name.String())
}

func TestDatasetNameParentAndChild(t *testing.T) {
	name := NewDatasetName("tank", "apps", "myapp")
	parent, ok := name.Parent()
	require.True(t, ok)
	assert.Equal(t, "tank/apps", parent.String())

	child := parent.Child("myapp")
	assert.True(t, child.Equal(name))

	root := NewDatasetName("tank")
	_, ok = root.Parent()
	assert.False(t, ok)
}

func TestDatasetNameEqual(t *testing.T) {
	a := NewDatasetName("tank", "a", "b")
	b := NewDatasetName("tank", "a", "b")
	c := NewDatasetName("tank", "a", "c")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestDatasetNamePathIsDefensiveCopy(t *testing.T) {
	name := NewDatasetName("tank", "a", "b")
	path := name.Path()
	path[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, name.Path())
}

func TestDatasetNameStringParseRoundTrip(t *testing.T) {
	for _, name := range []DatasetName{
		NewDatasetName("tank"),
		NewDatasetName("tank", "apps"),
		NewDatasetName("tank", "apps", "myapp"),
		NewDatasetName("pool0", "a", "b", "c"),
	} {
		reparsed := ParseDatasetName(name.String())
		require.True(t, reparsed.IsOk())
		assert.True(t, name.Equal(reparsed.Must()))
	}
}
