// Package ui renders a read-only file pane with ownership overlays, a
// status line, and the fatal-session prompt on a tcell screen.
package ui

import (
	"context"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/borrowscope/borrowscope/internal/decoration"
	"github.com/borrowscope/borrowscope/internal/lsp"
	"github.com/borrowscope/borrowscope/internal/status"
)

// InputKind identifies an intent produced by the key loop.
type InputKind int

const (
	// InputCursorMoved reports a new cursor position.
	InputCursorMoved InputKind = iota
	// InputRefresh asks for an immediate ownership query.
	InputRefresh
	// InputAnalyze asks the server to re-analyze the workspace.
	InputAnalyze
	// InputToggle flips the server-side ownership display at the cursor.
	InputToggle
	// InputCycleMode advances the display mode.
	InputCycleMode
	// InputPromptChoice answers the fatal-session prompt.
	InputPromptChoice
	// InputQuit exits the program.
	InputQuit
)

// Input is one user intent delivered to the application loop.
type Input struct {
	Kind     InputKind
	Position lsp.Position
	Choice   status.PromptChoice
}

// paintedSpan is a span projected onto a single line.
type paintedSpan struct {
	startCol  int
	endCol    int
	openEnded bool
	style     decoration.Style
	hover     string
}

// Viewer is the terminal front end. It implements decoration.Painter:
// Apply atomically replaces the active overlay set, so a repaint never
// shows a mix of old and new decorations.
type Viewer struct {
	screen tcell.Screen

	mu     sync.Mutex
	path   string
	lines  []string
	cursor lsp.Position
	top    int
	paints []decoration.Paint
	byLine map[int][]paintedSpan
	view   status.View

	inputs chan Input
}

// NewViewer creates a viewer on a fresh tcell screen.
func NewViewer() (*Viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewViewerWithScreen(screen), nil
}

// NewViewerWithScreen wraps an existing screen. Tests pass a
// tcell.SimulationScreen.
func NewViewerWithScreen(screen tcell.Screen) *Viewer {
	return &Viewer{
		screen: screen,
		byLine: map[int][]paintedSpan{},
		inputs: make(chan Input, 32),
	}
}

// Init initializes the underlying screen.
func (v *Viewer) Init() error {
	return v.screen.Init()
}

// Close restores the terminal.
func (v *Viewer) Close() {
	v.screen.Fini()
}

// Inputs returns the user-intent channel fed by Run.
func (v *Viewer) Inputs() <-chan Input { return v.inputs }

// LoadDocument replaces the displayed file and resets cursor and
// overlays.
func (v *Viewer) LoadDocument(path, content string) {
	v.mu.Lock()
	v.path = path
	v.lines = strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	v.cursor = lsp.Position{}
	v.top = 0
	v.paints = nil
	v.byLine = map[int][]paintedSpan{}
	v.mu.Unlock()
	v.Draw()
}

// Apply installs a complete overlay set, replacing the previous one.
func (v *Viewer) Apply(paints []decoration.Paint) {
	v.mu.Lock()
	v.paints = paints
	v.byLine = indexPaints(paints)
	v.mu.Unlock()
	v.Draw()
}

// Clear removes all overlays.
func (v *Viewer) Clear() {
	v.Apply(nil)
}

// SetStatus installs the status snapshot drawn in the bottom line and
// the prompt modal. Wired as the status.Model listener.
func (v *Viewer) SetStatus(view status.View) {
	v.mu.Lock()
	v.view = view
	v.mu.Unlock()
	v.Draw()
}

// Cursor returns the current cursor position.
func (v *Viewer) Cursor() lsp.Position {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cursor
}

// Path returns the displayed file path.
func (v *Viewer) Path() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.path
}

// HoverAt returns the hover text covering pos, or empty.
func (v *Viewer) HoverAt(pos lsp.Position) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, span := range v.byLine[pos.Line] {
		if span.hover == "" {
			continue
		}
		if span.covers(pos.Character) {
			return span.hover
		}
	}
	return ""
}

// Run polls screen events until ctx is cancelled or the user quits.
func (v *Viewer) Run(ctx context.Context) {
	defer close(v.inputs)
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		switch e := ev.(type) {
		case *tcell.EventResize:
			v.screen.Sync()
			v.Draw()
		case *tcell.EventKey:
			if v.handleKey(e) {
				return
			}
		}
	}
}

// Stop unblocks Run.
func (v *Viewer) Stop() {
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// handleKey translates one key event. Returns true on quit.
func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	v.mu.Lock()
	prompting := v.view.Prompting
	v.mu.Unlock()

	if prompting {
		switch {
		case ev.Key() == tcell.KeyEscape:
			v.send(Input{Kind: InputPromptChoice, Choice: status.ChoiceDismiss})
		case ev.Rune() == 'r':
			v.send(Input{Kind: InputPromptChoice, Choice: status.ChoiceRestart})
		case ev.Rune() == 'u':
			v.send(Input{Kind: InputPromptChoice, Choice: status.ChoiceUpdate})
		}
		return false
	}

	switch ev.Key() {
	case tcell.KeyCtrlC:
		v.send(Input{Kind: InputQuit})
		return true
	case tcell.KeyUp:
		v.moveCursor(-1, 0)
		return false
	case tcell.KeyDown:
		v.moveCursor(1, 0)
		return false
	case tcell.KeyLeft:
		v.moveCursor(0, -1)
		return false
	case tcell.KeyRight:
		v.moveCursor(0, 1)
		return false
	case tcell.KeyCtrlR:
		v.send(Input{Kind: InputRefresh, Position: v.Cursor()})
		return false
	}

	switch ev.Rune() {
	case 'q':
		v.send(Input{Kind: InputQuit})
		return true
	case 'k':
		v.moveCursor(-1, 0)
	case 'j':
		v.moveCursor(1, 0)
	case 'h':
		v.moveCursor(0, -1)
	case 'l':
		v.moveCursor(0, 1)
	case 'a':
		v.send(Input{Kind: InputAnalyze})
	case 't':
		v.send(Input{Kind: InputToggle, Position: v.Cursor()})
	case 'm':
		v.send(Input{Kind: InputCycleMode})
	}
	return false
}

func (v *Viewer) send(in Input) {
	select {
	case v.inputs <- in:
	default:
	}
}

// moveCursor clamps movement to the document and reports the new
// position.
func (v *Viewer) moveCursor(dLine, dCol int) {
	v.mu.Lock()
	line := int(v.cursor.Line) + dLine
	col := int(v.cursor.Character) + dCol
	if line < 0 {
		line = 0
	}
	if line >= len(v.lines) {
		line = len(v.lines) - 1
	}
	if line < 0 {
		line = 0
	}
	maxCol := 0
	if line < len(v.lines) {
		maxCol = len([]rune(v.lines[line]))
	}
	if col < 0 {
		col = 0
	}
	if col > maxCol {
		col = maxCol
	}
	moved := v.cursor.Line != line || v.cursor.Character != col
	v.cursor = lsp.Position{Line: line, Character: col}
	v.scrollToCursorLocked()
	pos := v.cursor
	v.mu.Unlock()

	if moved {
		v.send(Input{Kind: InputCursorMoved, Position: pos})
	}
	v.Draw()
}

func (v *Viewer) scrollToCursorLocked() {
	_, height := v.screen.Size()
	body := height - 1
	if body < 1 {
		body = 1
	}
	line := int(v.cursor.Line)
	if line < v.top {
		v.top = line
	}
	if line >= v.top+body {
		v.top = line - body + 1
	}
}

// Draw repaints the whole screen from current state.
func (v *Viewer) Draw() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.screen.Clear()
	width, height := v.screen.Size()
	body := height - 1

	base := tcell.StyleDefault
	for row := 0; row < body; row++ {
		idx := v.top + row
		if idx >= len(v.lines) {
			break
		}
		runes := []rune(v.lines[idx])
		spans := v.byLine[idx]
		for col := 0; col < len(runes) && col < width; col++ {
			style := base
			for _, span := range spans {
				if span.style.Color != "" && span.covers(col) {
					style = overlayStyle(style, span.style)
				}
			}
			v.screen.SetContent(col, row, runes[col], nil, style)
		}
	}

	v.drawStatusLocked(width, height)
	if v.view.Prompting {
		v.drawPromptLocked(width, height)
	}

	cursorRow := int(v.cursor.Line) - v.top
	if cursorRow >= 0 && cursorRow < body && !v.view.Prompting {
		v.screen.ShowCursor(int(v.cursor.Character), cursorRow)
	} else {
		v.screen.HideCursor()
	}
	v.screen.Show()
}

func (v *Viewer) drawStatusLocked(width, height int) {
	if height < 1 {
		return
	}
	row := height - 1
	text := v.view.Line()
	if hover := v.hoverAtLocked(v.cursor); hover != "" {
		text += " | " + hover
	}
	style := tcell.StyleDefault.Reverse(true)
	runes := []rune(text)
	for col := 0; col < width; col++ {
		ch := ' '
		if col < len(runes) {
			ch = runes[col]
		}
		v.screen.SetContent(col, row, ch, nil, style)
	}
}

func (v *Viewer) drawPromptLocked(width, height int) {
	text := v.view.PromptText
	runes := []rune(text)
	boxW := len(runes) + 4
	if boxW > width {
		boxW = width
	}
	left := (width - boxW) / 2
	row := height / 2
	style := tcell.StyleDefault.Reverse(true).Bold(true)
	for col := 0; col < boxW; col++ {
		ch := ' '
		if col >= 2 && col-2 < len(runes) {
			ch = runes[col-2]
		}
		v.screen.SetContent(left+col, row, ch, nil, style)
	}
}

func (v *Viewer) hoverAtLocked(pos lsp.Position) string {
	for _, span := range v.byLine[pos.Line] {
		if span.hover != "" && span.covers(pos.Character) {
			return span.hover
		}
	}
	return ""
}

func (s paintedSpan) covers(col int) bool {
	if col < s.startCol {
		return false
	}
	return s.openEnded || col < s.endCol
}

// indexPaints projects paint spans onto per-line runs. A span covering
// several lines contributes the start-line tail, full middle lines, and
// the end-line head.
func indexPaints(paints []decoration.Paint) map[int][]paintedSpan {
	byLine := map[int][]paintedSpan{}
	for _, paint := range paints {
		for _, span := range paint.Spans {
			start, end := span.Range.Start, span.Range.End
			for line := start.Line; line <= end.Line; line++ {
				ps := paintedSpan{style: paint.Style, hover: span.HoverText}
				if line == start.Line {
					ps.startCol = start.Character
				}
				if line == end.Line {
					ps.endCol = end.Character
				} else {
					ps.openEnded = true
				}
				byLine[line] = append(byLine[line], ps)
			}
		}
	}
	return byLine
}
