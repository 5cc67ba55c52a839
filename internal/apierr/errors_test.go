package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := Wrap(ProviderError, "create instance failed", errors.New("dial tcp: timeout"))
	assert.Contains(t, err.Error(), "provider_error")
	assert.Contains(t, err.Error(), "create instance failed")
	assert.Contains(t, err.Error(), "dial tcp: timeout")
}

func TestIsAndKindOf(t *testing.T) {
	err := New(NotFound, "credential not found")
	require.True(t, Is(err, NotFound))
	assert.False(t, Is(err, Conflict))
	assert.Equal(t, NotFound, KindOf(err))

	wrapped := Wrap(Conflict, "quota exceeded", err)
	assert.True(t, errors.Is(wrapped, New(Conflict, "")))
	assert.False(t, errors.Is(wrapped, New(NotFound, "")))
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{New(Unauthenticated, ""), 2},
		{New(Unauthorized, ""), 2},
		{New(Validation, ""), 3},
		{New(NotFound, ""), 4},
		{New(Conflict, ""), 5},
		{New(Transient, ""), 1},
		{errors.New("plain"), 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ExitCode(c.err))
	}
}
