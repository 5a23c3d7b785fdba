package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse", h)
	require.True(t, CheckPassword("correct horse", h))
	require.False(t, CheckPassword("battery staple", h))
	require.False(t, CheckPassword("correct horse", ""))

	_, err = HashPassword("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}
