package ivfpq

import (
	"context"
	"math/rand"
	"testing"

	"github.com/annstore/annstore/internal/attrs"
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
	if err != nil {
		t.Fatal(err)
	}
	return vs
}

func TestBuildAssignsEveryVectorToExactlyOnePartition(t *testing.T) {
	vs := trivialVectorSet(t)
	built, err := Build(context.Background(), vs,
		WithPartitions(2), WithDivisions(2), WithClusters(2),
		WithMaxIterations(50), WithTolerance(1e-9), WithRand(rand.New(rand.NewSource(3))))
	if err != nil {
		t.Fatal(err)
	}

	if len(built.Partitions) != 2 {
		t.Fatalf("got %d partitions, want 2", len(built.Partitions))
	}
	total := 0
	seen := make(map[string]bool)
	for _, p := range built.Partitions {
		total += len(p.VectorIDs)
		for _, id := range p.VectorIDs {
			if seen[id.String()] {
				t.Fatalf("vector id %s appears in more than one partition", id)
			}
			seen[id.String()] = true
		}
		for _, code := range p.Codes {
			if len(code) != 2 {
				t.Fatalf("got code length %d, want 2", len(code))
			}
		}
	}
	if total != vs.Len() {
		t.Fatalf("got %d total assigned vectors, want %d", total, vs.Len())
	}
}

func TestBuildRejectsMissingRequiredOptions(t *testing.T) {
	vs := trivialVectorSet(t)
	if _, err := Build(context.Background(), vs, WithDivisions(2), WithClusters(2)); err == nil {
		t.Fatal("expected error when Partitions is unset")
	}
}

func TestSetAttributeAtLastWriteWins(t *testing.T) {
	vs := trivialVectorSet(t)
	built, err := Build(context.Background(), vs,
		WithPartitions(2), WithDivisions(2), WithClusters(2),
		WithRand(rand.New(rand.NewSource(3))))
	if err != nil {
		t.Fatal(err)
	}

	id, ok := built.VectorIDAt(0)
	if !ok {
		t.Fatal("expected VectorIDAt(0) to resolve")
	}

	if err := built.SetAttributeAt(id, "tag", attrs.String("a")); err != nil {
		t.Fatal(err)
	}
	if err := built.SetAttributeAt(id, "tag", attrs.String("b")); err != nil {
		t.Fatal(err)
	}

	loc := built.index[id]
	result := QueryResult{VectorID: id, PartitionIndex: loc.partition}
	v, ok := built.GetAttribute(result, "tag")
	if !ok || v.Str != "b" {
		t.Fatalf("got %v, ok=%v, want \"b\"", v, ok)
	}
}
