package decoration

import (
	"log/slog"

	"github.com/borrowscope/borrowscope/internal/config"
	"github.com/borrowscope/borrowscope/internal/lsp"
)

// Engine converts cursor responses into paint instructions.
type Engine struct {
	painter Painter
}

// NewEngine creates an engine painting through p.
func NewEngine(p Painter) *Engine {
	return &Engine{painter: p}
}

// Render paints one cursor response. Styles are rebuilt from cfg on every
// call so configuration edits apply to the very next query, and the painter
// replaces all previous paint in the same pass.
func (e *Engine) Render(result *lsp.CursorResult, cfg config.Decorations) {
	if result == nil {
		return
	}

	paints := Build(result.Decorations, cfg)
	e.painter.Apply(paints)
}

// Clear removes all paint, used when display is disabled or a session ends.
func (e *Engine) Clear() {
	e.painter.Clear()
}

// Build classifies decorations into buckets with styles from cfg. Every
// bucket appears in the result, possibly with zero spans, so stale paint
// from a previous response is always replaced.
func Build(decos []lsp.WireDecoration, cfg config.Decorations) []Paint {
	paints := make([]Paint, numBuckets)
	for b := Bucket(0); b < numBuckets; b++ {
		paints[b] = Paint{Bucket: b, Style: styleFor(b, cfg)}
	}

	for _, d := range decos {
		kind := KindFromWire(d.Type)
		if kind == KindUnknown {
			slog.Debug("unknown decoration kind", "type", d.Type)
		}

		span := Span{Range: d.Range, HoverText: d.HoverText}
		bucket := bucketFor(kind)

		// Overlapped decorations are suppressed from paint to avoid
		// redundant nested highlights, keeping only their hover text.
		if d.Overlapped && bucket != BucketHover {
			if d.HoverText != "" {
				paints[BucketHover].Spans = append(paints[BucketHover].Spans, span)
			}
			continue
		}

		paints[bucket].Spans = append(paints[bucket].Spans, span)
	}

	return paints
}

// styleFor derives one bucket's style from live configuration.
// The hover bucket is deliberately styleless.
func styleFor(b Bucket, cfg config.Decorations) Style {
	if b == BucketHover {
		return Style{}
	}

	var color string
	switch b {
	case BucketLifetime:
		color = cfg.Lifetime
	case BucketImmBorrow:
		color = cfg.ImmBorrow
	case BucketMutBorrow:
		color = cfg.MutBorrow
	case BucketMoveCall:
		color = cfg.Move
	case BucketSharedMut:
		color = cfg.SharedMut
	case BucketOutlive:
		color = cfg.Outlive
	}

	return Style{
		Color:      color,
		Background: cfg.HighlightBackground,
		Thickness:  cfg.UnderlineThickness,
	}
}
