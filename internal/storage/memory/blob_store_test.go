package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	data := []byte("<html>pirated</html>")
	uri, err := store.PutObject(context.Background(), "evidence/t1/j1/1-abcd", "text/html", data, map[string]string{"sha256": "x"})
	require.NoError(t, err)
	require.Equal(t, "memory://evidence/t1/j1/1-abcd", uri)

	data[0] = 'X'
	got, err := store.GetObject(context.Background(), uri)
	require.NoError(t, err)
	require.Equal(t, "<html>pirated</html>", string(got))

	meta, ok := store.Metadata("evidence/t1/j1/1-abcd")
	require.True(t, ok)
	require.Equal(t, "x", meta["sha256"])
	require.Equal(t, 1, store.Len())
}

func TestBlobStoreErrors(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), " ", "", nil, nil)
	require.Error(t, err)

	_, err = store.GetObject(context.Background(), "memory://missing")
	require.ErrorIs(t, err, piracy.ErrNotFound)

	_, err = store.GetObject(context.Background(), "s3://b/k")
	require.Error(t, err)
}
