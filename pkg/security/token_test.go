package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	plain, hash, err := NewToken()
	require.NoError(t, err)
	assert.Len(t, plain, 43)
	assert.Equal(t, HashToken(plain), hash)
	assert.NotEqual(t, plain, hash)

	other, _, err := NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, plain, other)
}
