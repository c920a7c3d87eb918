package store

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestIOError(t *testing.T) {
	assert.Nil(t, IOError(nil, "noop"))

	base := errors.New("connection reset")
	err := IOError(base, "failed to save posting")
	assert.True(t, IsIO(err))
	assert.True(t, errors.Is(err, base))
	assert.Contains(t, err.Error(), "failed to save posting")

	assert.False(t, IsIO(base))
}
