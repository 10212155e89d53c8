package zfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZFSStringSizeTable(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"-", 0},
		{"0B", 0},
		{"1K", 1024},
		{"1.5G", 1610612736},
		{"1T", 1099511627776},
	}
	for _, c := range cases {
		r := ParseZFSString(c.in)
		require.Truef(t, r.IsOk(), "parsing %q", c.in)
		assert.Equalf(t, c.want, r.Must().Bytes(), "parsing %q", c.in)
	}
}

func TestParseZFSStringRejectsGarbage(t *testing.T) {
	assert.True(t, ParseZFSString("not-a-size").IsErr())
}

func TestSizeValueRoundTripCleanMultiples(t *testing.T) {
	for _, human := range []string{"1K", "1M", "1G", "1T"} {
		original := ParseZFSString(human).Must()
		reparsed := ParseZFSString(original.ToHumanReadable()).Must()
		assert.Equal(t, original.Bytes(), reparsed.Bytes(), "round trip for %s", human)
	}
}

func TestToHumanReadableTrimsTrailingZero(t *testing.T) {
	assert.Equal(t, "1K", FromBytes(1024).ToHumanReadable())
	assert.Equal(t, "1.5G", FromBytes(1610612736).ToHumanReadable())
}
