package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketPutGetDelete(t *testing.T) {
	s, err := Open(t.TempDir(), "oversync.db")
	require.NoError(t, err)
	defer s.Close()

	b, err := s.Bucket("widgets")
	require.NoError(t, err)

	_, ok, err := b.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Put("a", []byte("1")))
	v, ok, err := b.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, b.Delete("a"))
	_, ok, err = b.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBucketForEach(t *testing.T) {
	s, err := Open(t.TempDir(), "oversync.db")
	require.NoError(t, err)
	defer s.Close()

	b, err := s.Bucket("widgets")
	require.NoError(t, err)
	require.NoError(t, b.Put("a", []byte("1")))
	require.NoError(t, b.Put("b", []byte("2")))

	seen := map[string]string{}
	require.NoError(t, b.ForEach(func(k, v []byte) error {
		seen[string(k)] = string(v)
		return nil
	}))
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}
