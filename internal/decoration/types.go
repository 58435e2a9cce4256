// Package decoration turns rustowl cursor responses into categorized paint
// instructions for a host viewer.
//
// The wire kind is an open string tag; it is classified into a closed Kind
// enum and then into paint buckets. An overlapped decoration never paints
// (nested ranges would just add noise) but still carries its hover text.
package decoration

import (
	"github.com/borrowscope/borrowscope/internal/lsp"
)

// Kind is the closed set of decoration kinds this client understands.
type Kind int

const (
	KindLifetime Kind = iota
	KindImmBorrow
	KindMutBorrow
	KindMove
	KindCall
	KindSharedMut
	KindOutlive
	// KindUnknown covers tags introduced by newer servers.
	KindUnknown
)

// String returns the wire tag for known kinds.
func (k Kind) String() string {
	switch k {
	case KindLifetime:
		return "lifetime"
	case KindImmBorrow:
		return "imm_borrow"
	case KindMutBorrow:
		return "mut_borrow"
	case KindMove:
		return "move"
	case KindCall:
		return "call"
	case KindSharedMut:
		return "shared_mut"
	case KindOutlive:
		return "outlive"
	default:
		return "unknown"
	}
}

// KindFromWire classifies a server type tag.
func KindFromWire(tag string) Kind {
	switch tag {
	case "lifetime":
		return KindLifetime
	case "imm_borrow":
		return KindImmBorrow
	case "mut_borrow":
		return KindMutBorrow
	case "move":
		return KindMove
	case "call":
		return KindCall
	case "shared_mut":
		return KindSharedMut
	case "outlive":
		return KindOutlive
	default:
		return KindUnknown
	}
}

// Bucket is a paint category. Each bucket is painted with one style built
// fresh from configuration at render time.
type Bucket int

const (
	BucketLifetime Bucket = iota
	BucketImmBorrow
	BucketMutBorrow
	// BucketMoveCall merges moves and calls: both mark a value changing
	// hands at a call boundary.
	BucketMoveCall
	BucketSharedMut
	BucketOutlive
	// BucketHover carries tooltip text with no paint. Overlapped
	// decorations land here, as do unknown forward-compat kinds.
	BucketHover

	numBuckets
)

// String returns a human-readable bucket name.
func (b Bucket) String() string {
	switch b {
	case BucketLifetime:
		return "lifetime"
	case BucketImmBorrow:
		return "imm-borrow"
	case BucketMutBorrow:
		return "mut-borrow"
	case BucketMoveCall:
		return "move-call"
	case BucketSharedMut:
		return "shared-mut"
	case BucketOutlive:
		return "outlive"
	case BucketHover:
		return "hover"
	default:
		return "unknown"
	}
}

// bucketFor maps every kind to its paint bucket. The wildcard arm sends
// unrecognized kinds to the hover bucket: text survives, paint does not.
func bucketFor(k Kind) Bucket {
	switch k {
	case KindLifetime:
		return BucketLifetime
	case KindImmBorrow:
		return BucketImmBorrow
	case KindMutBorrow:
		return BucketMutBorrow
	case KindMove, KindCall:
		return BucketMoveCall
	case KindSharedMut:
		return BucketSharedMut
	case KindOutlive:
		return BucketOutlive
	default:
		return BucketHover
	}
}

// Span is one painted (or hover-only) range.
type Span struct {
	Range     lsp.Range
	HoverText string
}

// Style describes how a bucket paints. Color is "#rrggbb".
type Style struct {
	Color string
	// Background paints the range background; otherwise underline.
	Background bool
	// Thickness above 1 requests a heavier underline where supported.
	Thickness int
}

// Paint is one bucket's complete render instruction.
type Paint struct {
	Bucket Bucket
	Style  Style
	Spans  []Span
}

// Painter is the host capability to display paint instructions.
//
// Apply replaces the entire previous overlay set in one call: the
// implementation disposes earlier paint before applying the new set, so a
// render is atomic from the engine's point of view.
type Painter interface {
	Apply(paints []Paint)
	Clear()
}
