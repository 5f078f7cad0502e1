package anndb

import (
	"github.com/google/uuid"

	"github.com/annstore/annstore/internal/attrs"
	"github.com/annstore/annstore/internal/codec"
)

func uuidToCodec(id uuid.UUID) codec.Uuid {
	var upper, lower uint64
	for i := 0; i < 8; i++ {
		upper = upper<<8 | uint64(id[i])
		lower = lower<<8 | uint64(id[8+i])
	}
	return codec.Uuid{Upper: upper, Lower: lower}
}

func toCodecValue(v attrs.Value) codec.AttributeValue {
	switch v.Kind {
	case attrs.KindString:
		return codec.AttributeValue{HasString: true, String: v.Str}
	default:
		return codec.AttributeValue{HasUint64: true, Uint64: v.Uint64}
	}
}
