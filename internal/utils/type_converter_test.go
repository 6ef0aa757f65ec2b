package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringToID(t *testing.T) {
	id, err := StringToID("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	id, err = StringToID(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	for _, bad := range []string{"", "0", "-1", "abc", "4x"} {
		_, err := StringToID(bad)
		assert.Error(t, err, bad)
	}
}
