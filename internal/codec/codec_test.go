package codec

import "testing"

func TestUuidRoundTrip(t *testing.T) {
	want := Uuid{Upper: 0x1122334455667788, Lower: 0x99aabbccddeeff00}
	got, err := UnmarshalUuid(MarshalUuid(want))
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestVectorSetRoundTrip(t *testing.T) {
	want := VectorSet{VectorSize: 3, Data: []float32{1.5, -2.25, 0, 100.125}}
	got, err := UnmarshalVectorSet(MarshalVectorSet(want))
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorSize != want.VectorSize || len(got.Data) != len(want.Data) {
		t.Fatalf("shape mismatch: got %+v", got)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("data[%d]: got %v, want %v", i, got.Data[i], want.Data[i])
		}
	}
}

func TestEncodedVectorSetRoundTrip(t *testing.T) {
	want := EncodedVectorSet{VectorSize: 4, Data: []uint32{0, 1, 300, 70000}}
	got, err := UnmarshalEncodedVectorSet(MarshalEncodedVectorSet(want))
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorSize != want.VectorSize || len(got.Data) != len(want.Data) {
		t.Fatalf("shape mismatch: got %+v", got)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("data[%d]: got %v, want %v", i, got.Data[i], want.Data[i])
		}
	}
}

func TestAttributeValueRoundTrip(t *testing.T) {
	str := AttributeValue{HasString: true, String: "hello"}
	got, err := UnmarshalAttributeValue(MarshalAttributeValue(str))
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasString || got.String != "hello" || got.HasUint64 {
		t.Fatalf("got %+v", got)
	}

	num := AttributeValue{HasUint64: true, Uint64: 42}
	got, err = UnmarshalAttributeValue(MarshalAttributeValue(num))
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasUint64 || got.Uint64 != 42 || got.HasString {
		t.Fatalf("got %+v", got)
	}
}

func TestPartitionRoundTrip(t *testing.T) {
	want := Partition{
		VectorSize:   4,
		NumDivisions: 2,
		Centroid:     []float32{1, 2, 3, 4},
		EncodedVectors: EncodedVectorSet{
			VectorSize: 2,
			Data:       []uint32{0, 1, 1, 0},
		},
		VectorIDs: []Uuid{{Upper: 1, Lower: 2}, {Upper: 3, Lower: 4}},
	}
	got, err := UnmarshalPartition(MarshalPartition(want))
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorSize != want.VectorSize || got.NumDivisions != want.NumDivisions {
		t.Fatalf("scalar mismatch: got %+v", got)
	}
	if len(got.Centroid) != len(want.Centroid) || len(got.VectorIDs) != len(want.VectorIDs) {
		t.Fatalf("shape mismatch: got %+v", got)
	}
	for i, id := range want.VectorIDs {
		if got.VectorIDs[i] != id {
			t.Fatalf("vector id %d: got %+v, want %+v", i, got.VectorIDs[i], id)
		}
	}
}

func TestAttributesLogRoundTrip(t *testing.T) {
	want := AttributesLog{
		PartitionID: "partition-0",
		Entries: []OperationSetAttribute{
			{VectorID: Uuid{Upper: 1, Lower: 1}, NameIndex: 0, Value: AttributeValue{HasString: true, String: "a"}},
			{VectorID: Uuid{Upper: 1, Lower: 1}, NameIndex: 0, Value: AttributeValue{HasString: true, String: "b"}},
		},
	}
	got, err := UnmarshalAttributesLog(MarshalAttributesLog(want))
	if err != nil {
		t.Fatal(err)
	}
	if got.PartitionID != want.PartitionID || len(got.Entries) != len(want.Entries) {
		t.Fatalf("got %+v", got)
	}
	if got.Entries[1].Value.String != "b" {
		t.Fatalf("entry order not preserved: got %+v", got.Entries)
	}
}

func TestDatabaseRoundTrip(t *testing.T) {
	want := Database{
		VectorSize:           4,
		NumPartitions:        2,
		NumDivisions:         2,
		NumCodes:             8,
		PartitionIDs:         []string{"p0", "p1"},
		PartitionCentroidsID: "centroids",
		CodebookIDs:          []string{"cb0", "cb1"},
		AttributesLogIDs:     []string{"a0", "a1"},
		AttributeNames:       []string{"color", "size"},
		TotalVectors:         6,
	}
	got, err := UnmarshalDatabase(MarshalDatabase(want))
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorSize != want.VectorSize || len(got.PartitionIDs) != len(want.PartitionIDs) {
		t.Fatalf("got %+v", got)
	}
	if got.TotalVectors != want.TotalVectors {
		t.Fatalf("got TotalVectors %d, want %d", got.TotalVectors, want.TotalVectors)
	}
	for i := range want.AttributeNames {
		if got.AttributeNames[i] != want.AttributeNames[i] {
			t.Fatalf("attribute name %d mismatch: got %+v", i, got.AttributeNames)
		}
	}
}

func TestDatabaseRejectsInvariantViolation(t *testing.T) {
	bad := Database{
		VectorSize:       4,
		NumPartitions:    2,
		NumDivisions:     2,
		PartitionIDs:     []string{"only-one"},
		CodebookIDs:      []string{"cb0", "cb1"},
		AttributesLogIDs: []string{"a0", "a1"},
	}
	if _, err := UnmarshalDatabase(MarshalDatabase(bad)); err == nil {
		t.Fatal("expected codec error for partition id count mismatch")
	}
}
