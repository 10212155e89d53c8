package containerstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseComposeStatusJSON(t *testing.T) {
	stdout := `{"Service":"web","State":"running","Health":"healthy"}
{"Service":"db","State":"exited","Health":""}
`
	status := parseComposeStatusJSON(stdout)
	require := assert.New(t)
	require.Len(status.Services, 2)
	require.True(status.Services["web"].Running)
	require.Equal("healthy", status.Services["web"].Health)
	require.False(status.Services["db"].Running)
}

func TestParseComposeStatusJSONEmpty(t *testing.T) {
	status := parseComposeStatusJSON("")
	assert.Empty(t, status.Services)
}

func TestParseComposeNameListJSON(t *testing.T) {
	stdout := `[{"Name":"myapp"},{"Name":"otherapp"}]`
	names := parseComposeNameListJSON(stdout)
	assert.Equal(t, []string{"myapp", "otherapp"}, names)
}

func TestParseComposeNameListJSONMalformed(t *testing.T) {
	assert.Nil(t, parseComposeNameListJSON("not json"))
}
