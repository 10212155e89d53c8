package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOkAndFail(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsOk())
	assert.False(t, ok.IsErr())
	assert.Equal(t, 42, ok.Must())
	assert.Nil(t, ok.Err())

	v, present := ok.Value()
	assert.True(t, present)
	assert.Equal(t, 42, v)

	fail := Fail[int](NotFound("THING_NOT_FOUND", "no such thing"))
	assert.False(t, fail.IsOk())
	assert.True(t, fail.IsErr())
	require.NotNil(t, fail.Err())
	assert.Equal(t, KindNotFound, fail.Err().Kind)

	_, present = fail.Value()
	assert.False(t, present)
}

func TestMustPanicsOnFailure(t *testing.T) {
	fail := Fail[int](Operation("OP_FAILED", "boom"))
	assert.Panics(t, func() { fail.Must() })
}

func TestMap(t *testing.T) {
	doubled := Map(Ok(21), func(v int) int { return v * 2 })
	assert.Equal(t, 42, doubled.Must())

	stillFailed := Map(Fail[int](Operation("X", "x")), func(v int) int { return v * 2 })
	assert.True(t, stillFailed.IsErr())
}

func TestFlatMap(t *testing.T) {
	chained := FlatMap(Ok(10), func(v int) Result[string] {
		return Ok("value-10")
	})
	assert.Equal(t, "value-10", chained.Must())

	shortCircuited := FlatMap(Fail[int](Validation("field", "bad")), func(v int) Result[string] {
		t.Fatal("should not be called on a failure")
		return Ok("")
	})
	assert.True(t, shortCircuited.IsErr())
}

func TestCollectResults(t *testing.T) {
	all := CollectResults([]Result[int]{Ok(1), Ok(2), Ok(3)})
	require.True(t, all.IsOk())
	assert.Equal(t, []int{1, 2, 3}, all.Must())

	withFailure := CollectResults([]Result[int]{Ok(1), Fail[int](Operation("X", "x")), Ok(3)})
	assert.True(t, withFailure.IsErr())
}

func TestErrorHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		code int
	}{
		{Validation("name", "required"), 400},
		{NotFound("X", "x"), 404},
		{AlreadyExists("X", "x"), 409},
		{Timeout("X", "x"), 504},
		{Cancelled("X", "x"), 499},
		{Unavailable("X", "x"), 503},
		{Unexpected("X", "x"), 500},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.err.HTTPStatus(), "kind=%s", c.err.Kind)
	}
}

func TestErrorWithFieldAndDetails(t *testing.T) {
	err := Validation("hostname", "invalid").WithDetails(map[string]any{"value": "bad host"})
	assert.Equal(t, "hostname", err.Field)
	assert.Equal(t, "bad host", err.Details["value"])
	assert.Contains(t, err.Error(), "hostname")
}
