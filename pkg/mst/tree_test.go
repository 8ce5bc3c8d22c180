package mst

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func hashOf(s string) [32]byte {
	return blake3.Sum256([]byte(s))
}

func TestEmptyTreeRootHashIsConstant(t *testing.T) {
	require.Equal(t, EmptyRootHash, New().RootHash())
	require.Equal(t, New().RootHash(), New().RootHash())
}

func TestUpsertOrderIndependence(t *testing.T) {
	paths := []string{"a", "b/c", "notes/x.md", "zzz", "a/b/c/d", "1", "nested/deep/path/file"}

	forward := New()
	for _, p := range paths {
		forward.Upsert(p, hashOf(p))
	}

	reversed := New()
	for i := len(paths) - 1; i >= 0; i-- {
		reversed.Upsert(paths[i], hashOf(paths[i]))
	}

	require.Equal(t, forward.RootHash(), reversed.RootHash())
	require.NotEqual(t, EmptyRootHash, forward.RootHash())
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	tr := New()
	tr.Upsert("a", hashOf("a"))
	before := tr.RootHash()

	after := tr.Remove("never-existed")
	require.Equal(t, before, after)
}

func TestUpsertThenRemoveRestoresPriorRoot(t *testing.T) {
	tr := New()
	empty := tr.RootHash()

	tr.Upsert("only", hashOf("only"))
	require.NotEqual(t, empty, tr.RootHash())

	after := tr.Remove("only")
	require.Equal(t, empty, after)
}

func TestUpsertThenRemoveRestoresRemainingRoot(t *testing.T) {
	base := New()
	base.Upsert("kept", hashOf("kept"))
	baseRoot := base.RootHash()

	tr := New()
	tr.Upsert("kept", hashOf("kept"))
	tr.Upsert("transient", hashOf("transient"))
	tr.Remove("transient")

	require.Equal(t, baseRoot, tr.RootHash())
}

func TestConcurrentDisjointUpsertsConvergeWithSequential(t *testing.T) {
	paths := make([]string, 200)
	for i := range paths {
		paths[i] = "path" + string(rune('a'+i%26)) + string(rune('0'+i%10)) + string(rune(i))
	}

	sequential := New()
	for _, p := range paths {
		sequential.Upsert(p, hashOf(p))
	}

	concurrent := New()
	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			concurrent.Upsert(p, hashOf(p))
		}(p)
	}
	wg.Wait()

	require.Equal(t, sequential.RootHash(), concurrent.RootHash())
}

func TestDiffFindsAddedRemovedAndChanged(t *testing.T) {
	a := New()
	a.Upsert("same", hashOf("same"))
	a.Upsert("removed-from-b", hashOf("removed-from-b"))
	a.Upsert("changed", hashOf("changed-in-a"))

	b := New()
	b.Upsert("same", hashOf("same"))
	b.Upsert("changed", hashOf("changed-in-b"))
	b.Upsert("added-in-b", hashOf("added-in-b"))

	diff := a.Diff(b)
	require.ElementsMatch(t, []string{"removed-from-b", "changed", "added-in-b"}, diff)
}

func TestDiffOfIdenticalTreesIsEmpty(t *testing.T) {
	a := New()
	b := New()
	for _, p := range []string{"x", "y", "z/w"} {
		a.Upsert(p, hashOf(p))
		b.Upsert(p, hashOf(p))
	}
	require.Empty(t, a.Diff(b))
}
