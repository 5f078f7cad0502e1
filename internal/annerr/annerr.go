// Package annerr defines the error taxonomy shared across the engine.
//
// Every fallible operation returns a *Error wrapping one of the Kind
// values below, so callers can branch on the kind with errors.As
// instead of string-matching messages.
package annerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy buckets below. It
// is not a replacement for the wrapped error's message.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota
	// KindInvalidArgument covers out-of-range k, nprobe, a division
	// count that does not divide the vector size, or empty input.
	KindInvalidArgument
	// KindDimensionMismatch covers query/database/codebook/partition
	// dimension disagreements.
	KindDimensionMismatch
	// KindEmptyData covers degenerate (empty) clustering input.
	KindEmptyData
	// KindKExceedsN covers K > N in k-means, including a PQ code
	// count larger than the residual count per sub-space.
	KindKExceedsN
	// KindEmptyDistribution covers a weighted sampler with zero
	// entries or a non-positive weight sum.
	KindEmptyDistribution
	// KindInvalidContext covers operations attempted on an unbuilt
	// builder. Unknown attribute names are NOT this kind: the lookup
	// API reports them as not found (ok == false) with a nil error.
	KindInvalidContext
	// KindIoError covers underlying blob store failures.
	KindIoError
	// KindDigestMismatch covers content-address verification
	// failures on read.
	KindDigestMismatch
	// KindCodecError covers wire schema decode failures or invariant
	// violations discovered after decode.
	KindCodecError
	// KindNonFinite covers NaN/Inf encountered where arithmetic
	// requires finiteness.
	KindNonFinite
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindEmptyData:
		return "empty_data"
	case KindKExceedsN:
		return "k_exceeds_n"
	case KindEmptyDistribution:
		return "empty_distribution"
	case KindInvalidContext:
		return "invalid_context"
	case KindIoError:
		return "io_error"
	case KindDigestMismatch:
		return "digest_mismatch"
	case KindCodecError:
		return "codec_error"
	case KindNonFinite:
		return "non_finite"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by this module's public
// operations. Op names the failing operation (e.g. "kmeans.Run",
// "store.OpenHashedIn") for log correlation; it is not part of Is/As
// matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error with the given kind and op, wrapping err (which
// may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) is a *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
