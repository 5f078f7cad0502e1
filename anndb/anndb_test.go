package anndb

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annstore/annstore/internal/attrs"
	"github.com/annstore/annstore/internal/store"
	"github.com/annstore/annstore/internal/vecset"
)

func trivialVectorSet(t *testing.T) *vecset.Set {
	t.Helper()
	data := []float32{
		0, 0, 0, 0,
		0, 1, 0, 1,
		1, 0, 1, 0,
		1, 1, 1, 1,
		10, 10, 10, 10,
		10, 11, 10, 11,
		11, 10, 11, 10,
		11, 11, 11, 11,
	}
	vs, err := vecset.New(data, 4)
	require.NoError(t, err)
	return vs
}

func buildTestDatabase(t *testing.T) *BuiltDatabase {
	t.Helper()
	vs := trivialVectorSet(t)
	db, err := Build(context.Background(), vs,
		WithPartitions(2), WithDivisions(2), WithClusters(2),
		WithMaxIterations(50), WithTolerance(1e-9), WithRand(rand.New(rand.NewSource(7))))
	require.NoError(t, err)
	return db
}

func TestRoundTripQueryMatchesInMemory(t *testing.T) {
	vs := trivialVectorSet(t)
	db := buildTestDatabase(t)
	require.NoError(t, db.SetAttributeAt(0, "tag", attrs.String("alpha")))

	ms := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, Serialize(ctx, db, ms, "manifest"))

	loaded, err := LoadDatabase(ctx, ms, "manifest")
	require.NoError(t, err)
	assert.Equal(t, db.VectorSize(), loaded.VectorSize())

	q := vs.At(0)
	want, err := db.Query(q, 3, 2)
	require.NoError(t, err)
	got, err := loaded.Query(ctx, q, 3, 2)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].VectorID, got[i].VectorID, "result %d id", i)
		assert.Equal(t, want[i].SquaredDistance, got[i].SquaredDistance, "result %d distance", i)
	}
}

func TestRoundTripPreservesAttributes(t *testing.T) {
	db := buildTestDatabase(t)
	require.NoError(t, db.SetAttributeAt(2, "tag", attrs.String("first")))
	require.NoError(t, db.SetAttributeAt(2, "tag", attrs.String("second")))
	id, ok := db.VectorIDAt(2)
	require.True(t, ok, "expected VectorIDAt(2) to resolve")

	ms := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, Serialize(ctx, db, ms, "manifest"))
	loaded, err := LoadDatabase(ctx, ms, "manifest")
	require.NoError(t, err)

	results, err := loaded.Query(ctx, make([]float32, db.VectorSize()), 8, 2)
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if r.VectorID != id {
			continue
		}
		found = true
		v, ok, err := loaded.GetAttributeOf(ctx, r, "tag")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", v.Str)
	}
	assert.True(t, found, "expected vector id among query results")
}

func TestLoadDatabaseRejectsMissingManifest(t *testing.T) {
	db := buildTestDatabase(t)
	ms := store.NewMemStore()
	require.NoError(t, Serialize(context.Background(), db, ms, "manifest"))
	_, err := LoadDatabase(context.Background(), ms, "does-not-exist")
	assert.Error(t, err, "expected error loading a missing manifest")
}

func TestQueryRejectsKExceedsTotalConsistently(t *testing.T) {
	db := buildTestDatabase(t)
	ms := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, Serialize(ctx, db, ms, "manifest"))
	loaded, err := LoadDatabase(ctx, ms, "manifest")
	require.NoError(t, err)

	q := make([]float32, db.VectorSize())
	_, builtErr := db.Query(q, 9, 2)
	_, loadedErr := loaded.Query(ctx, q, 9, 2)
	assert.Error(t, builtErr, "expected Built.Query to reject k exceeding total vectors")
	assert.Error(t, loadedErr, "expected Loaded.Query to reject k exceeding total vectors")
}
