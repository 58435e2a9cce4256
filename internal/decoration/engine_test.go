package decoration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borrowscope/borrowscope/internal/config"
	"github.com/borrowscope/borrowscope/internal/lsp"
)

func rangeAt(line int) lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: line, Character: 0},
		End:   lsp.Position{Line: line, Character: 5},
	}
}

func paintByBucket(paints []Paint, b Bucket) Paint {
	for _, p := range paints {
		if p.Bucket == b {
			return p
		}
	}
	return Paint{}
}

func TestBuildClassifiesKinds(t *testing.T) {
	decos := []lsp.WireDecoration{
		{Type: "lifetime", Range: rangeAt(1)},
		{Type: "imm_borrow", Range: rangeAt(2)},
		{Type: "mut_borrow", Range: rangeAt(3)},
		{Type: "move", Range: rangeAt(4)},
		{Type: "call", Range: rangeAt(5)},
		{Type: "shared_mut", Range: rangeAt(6)},
		{Type: "outlive", Range: rangeAt(7)},
	}

	paints := Build(decos, config.Default().Decorations)

	assert.Len(t, paintByBucket(paints, BucketLifetime).Spans, 1)
	assert.Len(t, paintByBucket(paints, BucketImmBorrow).Spans, 1)
	assert.Len(t, paintByBucket(paints, BucketMutBorrow).Spans, 1)
	assert.Len(t, paintByBucket(paints, BucketMoveCall).Spans, 2, "move and call share a bucket")
	assert.Len(t, paintByBucket(paints, BucketSharedMut).Spans, 1)
	assert.Len(t, paintByBucket(paints, BucketOutlive).Spans, 1)
	assert.Empty(t, paintByBucket(paints, BucketHover).Spans)
}

func TestBuildOverlappedSuppression(t *testing.T) {
	decos := []lsp.WireDecoration{
		{Type: "mut_borrow", Range: rangeAt(1), HoverText: "outer", Overlapped: false},
		{Type: "mut_borrow", Range: rangeAt(2), HoverText: "nested", Overlapped: true},
		{Type: "imm_borrow", Range: rangeAt(3), Overlapped: true}, // no hover text
	}

	paints := Build(decos, config.Default().Decorations)

	mut := paintByBucket(paints, BucketMutBorrow)
	require.Len(t, mut.Spans, 1, "overlapped decoration must not paint")
	assert.Equal(t, "outer", mut.Spans[0].HoverText)

	assert.Empty(t, paintByBucket(paints, BucketImmBorrow).Spans)

	hover := paintByBucket(paints, BucketHover)
	require.Len(t, hover.Spans, 1, "overlapped hover text survives; textless ones drop entirely")
	assert.Equal(t, "nested", hover.Spans[0].HoverText)
}

func TestBuildUnknownKindKeepsHoverOnly(t *testing.T) {
	decos := []lsp.WireDecoration{
		{Type: "quantum_borrow", Range: rangeAt(1), HoverText: "from the future"},
	}

	paints := Build(decos, config.Default().Decorations)

	for _, p := range paints {
		if p.Bucket == BucketHover {
			require.Len(t, p.Spans, 1)
			continue
		}
		assert.Empty(t, p.Spans, "unknown kind must not paint bucket %s", p.Bucket)
	}
}

func TestBuildStylesFollowConfig(t *testing.T) {
	cfg := config.Default().Decorations
	cfg.MutBorrow = "#123456"
	cfg.HighlightBackground = true
	cfg.UnderlineThickness = 3

	paints := Build(nil, cfg)

	mut := paintByBucket(paints, BucketMutBorrow)
	assert.Equal(t, "#123456", mut.Style.Color)
	assert.True(t, mut.Style.Background)
	assert.Equal(t, 3, mut.Style.Thickness)

	hover := paintByBucket(paints, BucketHover)
	assert.Equal(t, Style{}, hover.Style, "hover bucket carries no paint style")
}

func TestBuildAlwaysEmitsEveryBucket(t *testing.T) {
	paints := Build(nil, config.Default().Decorations)
	require.Len(t, paints, int(numBuckets))

	seen := map[Bucket]bool{}
	for _, p := range paints {
		seen[p.Bucket] = true
	}
	assert.Len(t, seen, int(numBuckets), "all buckets present so stale paint is replaced")
}

// recordingPainter captures Apply calls for idempotence checks.
type recordingPainter struct {
	applied [][]Paint
	cleared int
}

func (r *recordingPainter) Apply(paints []Paint) { r.applied = append(r.applied, paints) }
func (r *recordingPainter) Clear()               { r.cleared++ }

func TestRenderIdempotent(t *testing.T) {
	painter := &recordingPainter{}
	engine := NewEngine(painter)

	result := &lsp.CursorResult{
		IsAnalyzed: true,
		Status:     lsp.StatusFinished,
		Decorations: []lsp.WireDecoration{
			{Type: "lifetime", Range: rangeAt(1), HoverText: "x"},
			{Type: "move", Range: rangeAt(2), Overlapped: true, HoverText: "m"},
		},
	}

	cfg := config.Default().Decorations
	engine.Render(result, cfg)
	engine.Render(result, cfg)

	require.Len(t, painter.applied, 2)
	assert.Equal(t, painter.applied[0], painter.applied[1],
		"same response and config must produce identical paint sets")
}

func TestRenderNilResultIsNoop(t *testing.T) {
	painter := &recordingPainter{}
	NewEngine(painter).Render(nil, config.Default().Decorations)
	assert.Empty(t, painter.applied)
}

func TestKindWireRoundTrip(t *testing.T) {
	for k := KindLifetime; k < KindUnknown; k++ {
		assert.Equal(t, k, KindFromWire(k.String()), "kind %v", k)
	}
	assert.Equal(t, KindUnknown, KindFromWire("nonsense"))
}
