package mst

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	"github.com/overspend1/oversync/pkg/storage"
)

func openTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	store, err := storage.Open(t.TempDir(), "vault.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bucket, err := store.Bucket(SideTableBucket())
	require.NoError(t, err)

	idx, err := Open(bucket)
	require.NoError(t, err)
	return idx
}

func TestCreateOneFile(t *testing.T) {
	idx := openTestIndexer(t)
	emptyRoot := idx.RootHash()

	root, err := idx.UpdateFile("notes/a.md", []byte("hello"), time.Now())
	require.NoError(t, err)

	entry, ok := idx.GetMetadata("notes/a.md")
	require.True(t, ok)
	require.Equal(t, blake3.Sum256([]byte("hello")), entry.ContentHash)
	require.Equal(t, uint64(5), entry.Size)
	require.NotEqual(t, emptyRoot, root)
}

func TestUpdateSameFileTwice(t *testing.T) {
	idx := openTestIndexer(t)
	root1, err := idx.UpdateFile("notes/a.md", []byte("hello"), time.Now())
	require.NoError(t, err)

	root2, err := idx.UpdateFile("notes/a.md", []byte("hello world"), time.Now())
	require.NoError(t, err)

	require.NotEqual(t, root1, root2)
	require.NotEqual(t, EmptyRootHash, root2)

	entry, ok := idx.GetMetadata("notes/a.md")
	require.True(t, ok)
	require.Equal(t, uint64(11), entry.Size)
}

func TestDeleteRestoresEmptyRoot(t *testing.T) {
	idx := openTestIndexer(t)
	emptyRoot := idx.RootHash()

	_, err := idx.UpdateFile("notes/a.md", []byte("hello"), time.Now())
	require.NoError(t, err)
	_, err = idx.UpdateFile("notes/a.md", []byte("hello world"), time.Now())
	require.NoError(t, err)

	root, err := idx.RemoveFile("notes/a.md")
	require.NoError(t, err)
	require.Equal(t, emptyRoot, root)

	_, ok := idx.GetMetadata("notes/a.md")
	require.False(t, ok)
}

func TestRemoveAbsentPathIsNoop(t *testing.T) {
	idx := openTestIndexer(t)
	_, err := idx.UpdateFile("keep", []byte("x"), time.Now())
	require.NoError(t, err)
	before := idx.RootHash()

	after, err := idx.RemoveFile("never-existed")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRecentActivityOrderingAndLimit(t *testing.T) {
	idx := openTestIndexer(t)
	base := time.Now()
	for i := 1; i <= 12; i++ {
		path := "f" + string(rune('0'+i/10)) + string(rune('0'+i%10))
		_, err := idx.UpdateFile(path, []byte("x"), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	recent := idx.RecentActivity(10)
	require.Len(t, recent, 10)
	for i := 0; i < len(recent)-1; i++ {
		require.True(t, recent[i].LastModified.After(recent[i+1].LastModified))
	}
	require.True(t, recent[0].LastModified.After(recent[len(recent)-1].LastModified))
}

func TestIndexerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(dir, "vault.db")
	require.NoError(t, err)
	bucket, err := store.Bucket(SideTableBucket())
	require.NoError(t, err)
	idx, err := Open(bucket)
	require.NoError(t, err)

	root, err := idx.UpdateFile("a", []byte("content"), time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store2, err := storage.Open(dir, "vault.db")
	require.NoError(t, err)
	defer store2.Close()
	bucket2, err := store2.Bucket(SideTableBucket())
	require.NoError(t, err)
	idx2, err := Open(bucket2)
	require.NoError(t, err)

	require.Equal(t, root, idx2.RootHash())
	entry, ok := idx2.GetMetadata("a")
	require.True(t, ok)
	require.Equal(t, blake3.Sum256([]byte("content")), entry.ContentHash)
}

func TestIndexerDiff(t *testing.T) {
	idxA := openTestIndexer(t)
	idxB := openTestIndexer(t)

	now := time.Now()
	_, err := idxA.UpdateFile("shared", []byte("same"), now)
	require.NoError(t, err)
	_, err = idxB.UpdateFile("shared", []byte("same"), now)
	require.NoError(t, err)

	_, err = idxA.UpdateFile("only-a", []byte("a"), now)
	require.NoError(t, err)
	_, err = idxB.UpdateFile("only-b", []byte("b"), now)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"only-a", "only-b"}, idxA.Diff(idxB))
}
