package tailbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferKeepsTail(t *testing.T) {
	b := New(8)

	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", b.String())

	_, _ = b.Write([]byte(" world"))
	require.Equal(t, "lo world", b.String())
}

func TestBufferLargeWrite(t *testing.T) {
	b := New(4)

	n, err := b.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "efgh", b.String())
}
