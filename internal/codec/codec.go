// Package codec hand-encodes the on-disk records as length-prefixed,
// field-numbered protobuf wire format, using the low-level
// google.golang.org/protobuf/encoding/protowire primitives directly —
// there is no .proto schema or protoc step; field numbers are fixed
// by this package's Marshal/Unmarshal pairs.
package codec

import (
	"math"

	"github.com/annstore/annstore/internal/annerr"
	"google.golang.org/protobuf/encoding/protowire"
)

// Uuid mirrors a 128-bit UUID split into two big-endian halves.
type Uuid struct {
	Upper uint64
	Lower uint64
}

// VectorSet is a flat N x D float32 block, used for partition
// centroids (N=P) and each PQ codebook (N=C).
type VectorSet struct {
	VectorSize uint32
	Data       []float32
}

// EncodedVectorSet is a flat N x M uint32 code block.
type EncodedVectorSet struct {
	VectorSize uint32 // here, num_divisions
	Data       []uint32
}

// AttributeValue is the oneof{string_value, uint64_value} union. Both
// Has* fields false means an absent/default value.
type AttributeValue struct {
	HasString bool
	String    string
	HasUint64 bool
	Uint64    uint64
}

// OperationSetAttribute is one attribute-log entry.
type OperationSetAttribute struct {
	VectorID  Uuid
	NameIndex uint32
	Value     AttributeValue
}

// AttributesLog is one partition's attribute history.
type AttributesLog struct {
	PartitionID string
	Entries     []OperationSetAttribute
}

// Partition is one coarse partition's on-disk record.
type Partition struct {
	VectorSize     uint32
	NumDivisions   uint32
	Centroid       []float32
	EncodedVectors EncodedVectorSet
	VectorIDs      []Uuid
}

// Database is the top-level manifest record.
type Database struct {
	VectorSize           uint32
	NumPartitions        uint32
	NumDivisions         uint32
	NumCodes             uint32
	PartitionIDs         []string
	PartitionCentroidsID string
	CodebookIDs          []string
	AttributesLogIDs     []string
	AttributeNames       []string
	// TotalVectors is the sum of every partition's vector count, carried
	// here so a loaded database can reject k > total without eagerly
	// fetching every partition.
	TotalVectors uint32
}

func appendUint32(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, []byte(v))
}

func appendSubmessage(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func appendPackedFloat32(b []byte, num protowire.Number, vals []float32) []byte {
	payload := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		payload = protowire.AppendFixed32(payload, math.Float32bits(v))
	}
	return appendSubmessage(b, num, payload)
}

func appendPackedUint32(b []byte, num protowire.Number, vals []uint32) []byte {
	payload := make([]byte, 0, len(vals))
	for _, v := range vals {
		payload = protowire.AppendVarint(payload, uint64(v))
	}
	return appendSubmessage(b, num, payload)
}

func appendFixed64(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}

// MarshalUuid encodes Uuid{upper:fixed64=1, lower:fixed64=2}.
func MarshalUuid(u Uuid) []byte {
	var b []byte
	b = appendFixed64(b, 1, u.Upper)
	b = appendFixed64(b, 2, u.Lower)
	return b
}

// UnmarshalUuid decodes a Uuid record.
func UnmarshalUuid(data []byte) (Uuid, error) {
	var u Uuid
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Uuid{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return Uuid{}, codecErr(protowire.ParseError(n))
			}
			u.Upper = v
			data = data[n:]
		case num == 2 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return Uuid{}, codecErr(protowire.ParseError(n))
			}
			u.Lower = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Uuid{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return u, nil
}

// MarshalAttributeValue encodes AttributeValue{string_value=1, uint64_value=2}.
func MarshalAttributeValue(v AttributeValue) []byte {
	var b []byte
	if v.HasString {
		b = appendString(b, 1, v.String)
	}
	if v.HasUint64 {
		b = appendUint32Varint(b, 2, v.Uint64)
	}
	return b
}

func appendUint32Varint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// UnmarshalAttributeValue decodes an AttributeValue record.
func UnmarshalAttributeValue(data []byte) (AttributeValue, error) {
	var v AttributeValue
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return AttributeValue{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return AttributeValue{}, codecErr(protowire.ParseError(n))
			}
			v.HasString = true
			v.String = string(s)
			data = data[n:]
		case num == 2 && typ == protowire.VarintType:
			u, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return AttributeValue{}, codecErr(protowire.ParseError(n))
			}
			v.HasUint64 = true
			v.Uint64 = u
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return AttributeValue{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return v, nil
}

// MarshalOperationSetAttribute encodes
// OperationSetAttribute{vector_id=1, name_index=2, value=3}.
func MarshalOperationSetAttribute(op OperationSetAttribute) []byte {
	var b []byte
	b = appendSubmessage(b, 1, MarshalUuid(op.VectorID))
	b = appendUint32(b, 2, op.NameIndex)
	b = appendSubmessage(b, 3, MarshalAttributeValue(op.Value))
	return b
}

// UnmarshalOperationSetAttribute decodes an OperationSetAttribute record.
func UnmarshalOperationSetAttribute(data []byte) (OperationSetAttribute, error) {
	var op OperationSetAttribute
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return OperationSetAttribute{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return OperationSetAttribute{}, codecErr(protowire.ParseError(n))
			}
			id, err := UnmarshalUuid(raw)
			if err != nil {
				return OperationSetAttribute{}, err
			}
			op.VectorID = id
			data = data[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return OperationSetAttribute{}, codecErr(protowire.ParseError(n))
			}
			op.NameIndex = uint32(v)
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return OperationSetAttribute{}, codecErr(protowire.ParseError(n))
			}
			val, err := UnmarshalAttributeValue(raw)
			if err != nil {
				return OperationSetAttribute{}, err
			}
			op.Value = val
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return OperationSetAttribute{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return op, nil
}

// MarshalAttributesLog encodes AttributesLog{partition_id=1, entries=2}.
func MarshalAttributesLog(l AttributesLog) []byte {
	var b []byte
	b = appendString(b, 1, l.PartitionID)
	for _, e := range l.Entries {
		b = appendSubmessage(b, 2, MarshalOperationSetAttribute(e))
	}
	return b
}

// UnmarshalAttributesLog decodes an AttributesLog record.
func UnmarshalAttributesLog(data []byte) (AttributesLog, error) {
	var l AttributesLog
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return AttributesLog{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return AttributesLog{}, codecErr(protowire.ParseError(n))
			}
			l.PartitionID = string(s)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return AttributesLog{}, codecErr(protowire.ParseError(n))
			}
			op, err := UnmarshalOperationSetAttribute(raw)
			if err != nil {
				return AttributesLog{}, err
			}
			l.Entries = append(l.Entries, op)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return AttributesLog{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return l, nil
}

// MarshalVectorSet encodes VectorSet{vector_size=1, data=2 (packed f32)}.
func MarshalVectorSet(vs VectorSet) []byte {
	var b []byte
	b = appendUint32(b, 1, vs.VectorSize)
	b = appendPackedFloat32(b, 2, vs.Data)
	return b
}

// UnmarshalVectorSet decodes a VectorSet record.
func UnmarshalVectorSet(data []byte) (VectorSet, error) {
	var vs VectorSet
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return VectorSet{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return VectorSet{}, codecErr(protowire.ParseError(n))
			}
			vs.VectorSize = uint32(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return VectorSet{}, codecErr(protowire.ParseError(n))
			}
			if len(raw)%4 != 0 {
				return VectorSet{}, annerr.New(annerr.KindCodecError, "codec.UnmarshalVectorSet", nil)
			}
			vs.Data = make([]float32, len(raw)/4)
			for i := range vs.Data {
				bits, m := protowire.ConsumeFixed32(raw[i*4:])
				if m < 0 {
					return VectorSet{}, codecErr(protowire.ParseError(m))
				}
				vs.Data[i] = math.Float32frombits(bits)
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return VectorSet{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return vs, nil
}

// MarshalEncodedVectorSet encodes EncodedVectorSet{vector_size=1, data=2 (packed u32)}.
func MarshalEncodedVectorSet(ev EncodedVectorSet) []byte {
	var b []byte
	b = appendUint32(b, 1, ev.VectorSize)
	b = appendPackedUint32(b, 2, ev.Data)
	return b
}

// UnmarshalEncodedVectorSet decodes an EncodedVectorSet record.
func UnmarshalEncodedVectorSet(data []byte) (EncodedVectorSet, error) {
	var ev EncodedVectorSet
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return EncodedVectorSet{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return EncodedVectorSet{}, codecErr(protowire.ParseError(n))
			}
			ev.VectorSize = uint32(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return EncodedVectorSet{}, codecErr(protowire.ParseError(n))
			}
			for len(raw) > 0 {
				v, m := protowire.ConsumeVarint(raw)
				if m < 0 {
					return EncodedVectorSet{}, codecErr(protowire.ParseError(m))
				}
				ev.Data = append(ev.Data, uint32(v))
				raw = raw[m:]
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return EncodedVectorSet{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return ev, nil
}

// MarshalPartition encodes Partition{vector_size=1, num_divisions=2,
// centroid=3 (packed f32), encoded_vectors=4, vector_ids=5 (repeated Uuid)}.
func MarshalPartition(p Partition) []byte {
	var b []byte
	b = appendUint32(b, 1, p.VectorSize)
	b = appendUint32(b, 2, p.NumDivisions)
	b = appendPackedFloat32(b, 3, p.Centroid)
	b = appendSubmessage(b, 4, MarshalEncodedVectorSet(p.EncodedVectors))
	for _, id := range p.VectorIDs {
		b = appendSubmessage(b, 5, MarshalUuid(id))
	}
	return b
}

// UnmarshalPartition decodes a Partition record.
func UnmarshalPartition(data []byte) (Partition, error) {
	var p Partition
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Partition{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Partition{}, codecErr(protowire.ParseError(n))
			}
			p.VectorSize = uint32(v)
			data = data[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Partition{}, codecErr(protowire.ParseError(n))
			}
			p.NumDivisions = uint32(v)
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Partition{}, codecErr(protowire.ParseError(n))
			}
			if len(raw)%4 != 0 {
				return Partition{}, annerr.New(annerr.KindCodecError, "codec.UnmarshalPartition", nil)
			}
			p.Centroid = make([]float32, len(raw)/4)
			for i := range p.Centroid {
				bits, m := protowire.ConsumeFixed32(raw[i*4:])
				if m < 0 {
					return Partition{}, codecErr(protowire.ParseError(m))
				}
				p.Centroid[i] = math.Float32frombits(bits)
			}
			data = data[n:]
		case num == 4 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Partition{}, codecErr(protowire.ParseError(n))
			}
			ev, err := UnmarshalEncodedVectorSet(raw)
			if err != nil {
				return Partition{}, err
			}
			p.EncodedVectors = ev
			data = data[n:]
		case num == 5 && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Partition{}, codecErr(protowire.ParseError(n))
			}
			id, err := UnmarshalUuid(raw)
			if err != nil {
				return Partition{}, err
			}
			p.VectorIDs = append(p.VectorIDs, id)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Partition{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return p, nil
}

// MarshalDatabase encodes the top-level manifest record, field numbers
// 1-10 exactly as listed for Database.
func MarshalDatabase(d Database) []byte {
	var b []byte
	b = appendUint32(b, 1, d.VectorSize)
	b = appendUint32(b, 2, d.NumPartitions)
	b = appendUint32(b, 3, d.NumDivisions)
	b = appendUint32(b, 4, d.NumCodes)
	for _, id := range d.PartitionIDs {
		b = appendString(b, 5, id)
	}
	b = appendString(b, 6, d.PartitionCentroidsID)
	for _, id := range d.CodebookIDs {
		b = appendString(b, 7, id)
	}
	for _, id := range d.AttributesLogIDs {
		b = appendString(b, 8, id)
	}
	for _, name := range d.AttributeNames {
		b = appendString(b, 9, name)
	}
	b = appendUint32(b, 10, d.TotalVectors)
	return b
}

// UnmarshalDatabase decodes a manifest record, validating the
// cross-field invariants the builder guarantees at write time.
func UnmarshalDatabase(data []byte) (Database, error) {
	var d Database
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Database{}, codecErr(protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.VectorSize = uint32(v)
			data = data[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.NumPartitions = uint32(v)
			data = data[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.NumDivisions = uint32(v)
			data = data[n:]
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.NumCodes = uint32(v)
			data = data[n:]
		case num == 5 && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.PartitionIDs = append(d.PartitionIDs, string(s))
			data = data[n:]
		case num == 6 && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.PartitionCentroidsID = string(s)
			data = data[n:]
		case num == 7 && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.CodebookIDs = append(d.CodebookIDs, string(s))
			data = data[n:]
		case num == 8 && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.AttributesLogIDs = append(d.AttributesLogIDs, string(s))
			data = data[n:]
		case num == 9 && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.AttributeNames = append(d.AttributeNames, string(s))
			data = data[n:]
		case num == 10 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			d.TotalVectors = uint32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Database{}, codecErr(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if len(d.PartitionIDs) != int(d.NumPartitions) ||
		len(d.CodebookIDs) != int(d.NumDivisions) ||
		len(d.AttributesLogIDs) != int(d.NumPartitions) ||
		(d.NumDivisions != 0 && d.VectorSize%d.NumDivisions != 0) {
		return Database{}, annerr.New(annerr.KindCodecError, "codec.UnmarshalDatabase", nil)
	}
	return d, nil
}

func codecErr(err error) error {
	return annerr.New(annerr.KindCodecError, "codec", err)
}
