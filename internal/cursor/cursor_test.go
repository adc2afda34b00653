package cursor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	t.Run("lines", func(t *testing.T) {
		c := New(0)
		c.Feed([]byte("GET / HTTP/1.1\r\nHost: loc"))
		line, ok, err := c.ReadLine()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "GET / HTTP/1.1", string(line))

		_, ok, err = c.ReadLine()
		require.NoError(t, err)
		require.False(t, ok)

		c.Feed([]byte("alhost\n\r\n"))
		line, ok, err = c.ReadLine()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Host: localhost", string(line))

		line, ok, err = c.ReadLine()
		require.NoError(t, err)
		require.True(t, ok)
		require.Empty(t, line)
		require.Zero(t, c.Len())
	})

	t.Run("line too long", func(t *testing.T) {
		c := New(4)
		c.Feed([]byte("abcd"))
		_, ok, err := c.ReadLine()
		require.NoError(t, err)
		require.False(t, ok)

		c.Feed([]byte("e"))
		_, _, err = c.ReadLine()
		require.ErrorIs(t, err, ErrLineTooLong)
	})

	t.Run("exact read", func(t *testing.T) {
		c := New(0)
		c.Feed([]byte("hel"))
		_, ok := c.Read(5)
		require.False(t, ok)
		require.Equal(t, 3, c.Len())

		c.Feed([]byte("lo, world"))
		data, ok := c.Read(5)
		require.True(t, ok)
		require.Equal(t, "hello", string(data))
		require.Equal(t, ", world", string(c.Bytes()))
	})

	t.Run("next and discard", func(t *testing.T) {
		c := New(0)
		c.Feed([]byte("0123456789"))
		require.Equal(t, "012", string(c.Next(3)))
		c.Discard(2)
		require.Equal(t, "56789", string(c.Next(100)))
		require.Empty(t, c.ReadAll())
	})

	t.Run("feed copies", func(t *testing.T) {
		c := New(0)
		buff := []byte("abc")
		c.Feed(buff)
		copy(buff, "xyz")
		require.Equal(t, "abc", string(c.ReadAll()))
	})

	t.Run("compaction keeps pending bytes", func(t *testing.T) {
		c := New(0)
		for i := 0; i < 100; i++ {
			c.Feed([]byte("line\n"))
			c.Feed([]byte("tail"))
			line, ok, err := c.ReadLine()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "line", string(line))
			require.Equal(t, "tail", string(c.Next(4)))
		}

		c.Feed([]byte("a"))
		c.Reset()
		require.Zero(t, c.Len())
	})
}
