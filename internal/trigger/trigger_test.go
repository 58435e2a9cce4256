package trigger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borrowscope/borrowscope/internal/lsp"
)

type recorder struct {
	mu   sync.Mutex
	got  []Request
	cond chan struct{}
}

func newRecorder() *recorder {
	return &recorder{cond: make(chan struct{}, 64)}
}

func (r *recorder) fire(req Request) {
	r.mu.Lock()
	r.got = append(r.got, req)
	r.mu.Unlock()
	r.cond <- struct{}{}
}

func (r *recorder) requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, len(r.got))
	copy(out, r.got)
	return out
}

func (r *recorder) waitOne(t *testing.T) {
	t.Helper()
	select {
	case <-r.cond:
	case <-time.After(2 * time.Second):
		t.Fatal("no request fired")
	}
}

func at(line, char int) lsp.CursorParams {
	return lsp.CursorParams{
		Position: lsp.Position{Line: line, Character: char},
	}
}

func TestDebounceCollapsesBurst(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(20*time.Millisecond, rec.fire)

	for i := 0; i < 10; i++ {
		d.Schedule(at(i, 0))
	}
	rec.waitOne(t)

	got := rec.requests()
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Params.Position.Line)
	assert.True(t, d.Fresh(got[0].Generation))
}

func TestDebounceSeparatedSchedulesBothFire(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(10*time.Millisecond, rec.fire)

	d.Schedule(at(1, 0))
	rec.waitOne(t)
	d.Schedule(at(2, 0))
	rec.waitOne(t)

	got := rec.requests()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Params.Position.Line)
	assert.Equal(t, 2, got[1].Params.Position.Line)
	assert.Greater(t, got[1].Generation, got[0].Generation)
}

func TestNowBypassesDelayAndCancelsPending(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(time.Hour, rec.fire)

	stale := d.Schedule(at(1, 0))
	gen := d.Now(at(5, 3))
	rec.waitOne(t)

	got := rec.requests()
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Params.Position.Line)
	assert.Equal(t, gen, got[0].Generation)
	assert.False(t, d.Fresh(stale))

	// The hour-long pending schedule must never fire.
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, rec.requests(), 1)
}

func TestCancelDropsPending(t *testing.T) {
	rec := newRecorder()
	d := NewDebouncer(15*time.Millisecond, rec.fire)

	d.Schedule(at(1, 0))
	d.Cancel()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.requests())
}

func TestFreshnessTracksLatestGeneration(t *testing.T) {
	d := NewDebouncer(time.Hour, func(Request) {})

	g1 := d.Schedule(at(1, 0))
	g2 := d.Schedule(at(2, 0))

	assert.False(t, d.Fresh(g1))
	assert.True(t, d.Fresh(g2))
	assert.Equal(t, g2, d.Latest())
}
