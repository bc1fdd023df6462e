package env

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	e := Default()
	require.NotNil(t, e)
	assert.Same(t, e, Default())

	var ran atomic.Bool
	require.True(t, e.Schedule(func() { ran.Store(true) }))
	require.NoError(t, CloseDefault())
	assert.True(t, ran.Load())

	// The closed env stays in place.
	assert.Same(t, e, Default())
	assert.False(t, Default().Schedule(func() {}))
	require.NoError(t, CloseDefault())
}
