// Package app routes user intents to the rustowl session and folds
// responses into overlays and status updates.
package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/borrowscope/borrowscope/internal/config"
	"github.com/borrowscope/borrowscope/internal/decoration"
	"github.com/borrowscope/borrowscope/internal/lsp"
	"github.com/borrowscope/borrowscope/internal/session"
	"github.com/borrowscope/borrowscope/internal/status"
	"github.com/borrowscope/borrowscope/internal/trigger"
	"github.com/borrowscope/borrowscope/internal/ui"
)

// Session is the slice of the supervisor the router drives. Satisfied
// by *session.Supervisor.
type Session interface {
	Cursor(ctx context.Context, params lsp.CursorParams) (*lsp.CursorResult, error)
	Analyze() error
	ToggleOwnership(ctx context.Context, uri string, pos lsp.Position) error
	DidOpen(path, content string) error
	DidSave(path, content string) error
	Restart(ctx context.Context) error
	Update(ctx context.Context) error
	Stop(ctx context.Context) error
	Notifications() <-chan session.Notification
}

// App owns the query pipeline for one open document.
type App struct {
	sess   Session
	engine *decoration.Engine
	model  *status.Model
	inputs <-chan ui.Input

	// cfgPath is the config file the viewer was started with; mode
	// changes persist there. Immutable after New.
	cfgPath string

	mu       sync.Mutex
	cfg      config.Config
	path     string
	lastSeen *lsp.CursorResult

	debouncer *trigger.Debouncer
	queries   chan trigger.Request
}

// New wires a router over a live session and an overlay painter.
func New(cfg config.Config, cfgPath string, sess Session, painter decoration.Painter, model *status.Model, inputs <-chan ui.Input) *App {
	a := &App{
		sess:    sess,
		engine:  decoration.NewEngine(painter),
		model:   model,
		inputs:  inputs,
		cfg:     cfg,
		cfgPath: cfgPath,
		queries: make(chan trigger.Request, 8),
	}
	a.debouncer = trigger.NewDebouncer(cfg.DisplayDelay(), a.enqueue)
	model.SetMode(string(cfg.DisplayMode))
	return a
}

// OpenDocument registers the displayed file with the session.
func (a *App) OpenDocument(path, content string) error {
	a.mu.Lock()
	a.path = path
	a.mu.Unlock()
	return a.sess.DidOpen(path, content)
}

// Run processes inputs and session notifications until ctx is
// cancelled or the input channel closes.
func (a *App) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-a.inputs:
			if !ok {
				return
			}
			if a.handleInput(ctx, in) {
				return
			}
		case n := <-a.sess.Notifications():
			a.model.SetSession(n)
		case req := <-a.queries:
			a.query(ctx, req)
		}
	}
}

func (a *App) handleInput(ctx context.Context, in ui.Input) bool {
	switch in.Kind {
	case ui.InputCursorMoved:
		a.cursorMoved(in.Position)
	case ui.InputRefresh:
		a.refreshNow(in.Position)
	case ui.InputAnalyze:
		if err := a.sess.Analyze(); err != nil {
			slog.Warn("analyze request", "error", err)
		} else {
			a.model.SetAnalysis(status.AnalysisRunning)
		}
	case ui.InputToggle:
		a.toggle(ctx, in.Position)
	case ui.InputCycleMode:
		a.cycleMode()
	case ui.InputPromptChoice:
		a.answerPrompt(ctx, in.Choice)
	case ui.InputQuit:
		return true
	}
	return false
}

// cursorMoved schedules a debounced query. Only the selected display
// mode follows the cursor, and only for Rust documents.
func (a *App) cursorMoved(pos lsp.Position) {
	a.mu.Lock()
	mode := a.cfg.DisplayMode
	params, ok := a.paramsLocked(pos)
	a.mu.Unlock()
	if mode != config.DisplayModeSelected || !ok {
		return
	}
	a.debouncer.Schedule(params)
}

// refreshNow fires an immediate query regardless of the debounce
// window. Disabled mode still suppresses it.
func (a *App) refreshNow(pos lsp.Position) {
	a.mu.Lock()
	mode := a.cfg.DisplayMode
	params, ok := a.paramsLocked(pos)
	a.mu.Unlock()
	if mode == config.DisplayModeDisabled || !ok {
		return
	}
	a.debouncer.Now(params)
}

// DocumentSaved reloads server state for the file and refreshes
// overlays immediately.
func (a *App) DocumentSaved(path, content string, pos lsp.Position) {
	if err := a.sess.DidSave(path, content); err != nil {
		slog.Warn("didSave", "error", err)
		return
	}
	a.refreshNow(pos)
}

func (a *App) toggle(ctx context.Context, pos lsp.Position) {
	a.mu.Lock()
	path := a.path
	a.mu.Unlock()
	if path == "" {
		return
	}
	uri := lsp.FilePathToURI(path)
	if err := a.sess.ToggleOwnership(ctx, uri, pos); err != nil {
		slog.Warn("toggle ownership", "error", err)
		return
	}
	a.model.SetMessage("ownership toggled")
}

// cycleMode advances selected -> manual -> disabled -> selected and
// persists the choice. Overlays are cleared when display goes off.
func (a *App) cycleMode() {
	a.mu.Lock()
	a.cfg.DisplayMode = a.cfg.DisplayMode.Cycle()
	mode := a.cfg.DisplayMode
	a.mu.Unlock()

	a.applyMode(mode)
	a.persistMode(mode)
}

// applyMode updates the status label and tears down overlays and
// pending queries when display goes off.
func (a *App) applyMode(mode config.DisplayMode) {
	a.model.SetMode(string(mode))
	if mode == config.DisplayModeDisabled {
		a.debouncer.Cancel()
		a.engine.Clear()
	}
}

// persistMode writes the new display mode into the active config file.
// The file is re-read first so edits to any other key survive the
// write.
func (a *App) persistMode(mode config.DisplayMode) {
	if a.cfgPath == "" {
		return
	}
	onDisk, err := config.Load(a.cfgPath)
	if err == nil {
		onDisk.DisplayMode = mode
		err = config.Save(a.cfgPath, onDisk)
	}
	if err != nil {
		slog.Warn("persisting display mode", "path", a.cfgPath, "error", err)
	}
}

func (a *App) answerPrompt(ctx context.Context, choice status.PromptChoice) {
	a.model.ClosePrompt()
	switch choice {
	case status.ChoiceRestart:
		go func() {
			if err := a.sess.Restart(ctx); err != nil {
				slog.Error("restart", "error", err)
			}
		}()
	case status.ChoiceUpdate:
		a.model.SetMessage("updating rustowl...")
		go func() {
			if err := a.sess.Update(ctx); err != nil {
				slog.Error("update", "error", err)
			}
			a.model.ClearMessage()
		}()
	case status.ChoiceDismiss:
	}
}

// ReloadConfig applies display settings from a changed config file:
// palette, debounce delay, and display mode. Active overlays are
// re-rendered with the new palette; session settings like server_path
// only apply on restart.
func (a *App) ReloadConfig(cfg config.Config) {
	a.mu.Lock()
	modeChanged := a.cfg.DisplayMode != cfg.DisplayMode
	a.cfg.DisplayMode = cfg.DisplayMode
	a.cfg.Decorations = cfg.Decorations
	a.cfg.DisplayDelayMS = cfg.DisplayDelayMS
	mode := a.cfg.DisplayMode
	decorations := a.cfg.Decorations
	last := a.lastSeen
	a.mu.Unlock()

	a.debouncer.SetDelay(cfg.DisplayDelay())
	if modeChanged {
		a.applyMode(mode)
	}
	if last != nil && mode != config.DisplayModeDisabled {
		a.engine.Render(last, decorations)
	}
	slog.Info("config reloaded", "mode", mode)
}

// enqueue hands a fired request to the Run loop. Called from timer
// goroutines.
func (a *App) enqueue(req trigger.Request) {
	select {
	case a.queries <- req:
	default:
	}
}

// query performs one cursor exchange and renders the result unless a
// newer request was issued meanwhile.
func (a *App) query(ctx context.Context, req trigger.Request) {
	result, err := a.sess.Cursor(ctx, req.Params)
	if err != nil {
		slog.Debug("cursor query", "error", err)
		return
	}
	if !a.debouncer.Fresh(req.Generation) {
		return
	}

	a.mu.Lock()
	a.lastSeen = result
	decorations := a.cfg.Decorations
	a.mu.Unlock()

	a.model.SetAnalysis(status.AnalysisFromStatus(result.Status))
	a.engine.Render(result, decorations)
}

// paramsLocked builds cursor params for the open document. Non-Rust
// files are never queried. Caller holds a.mu.
func (a *App) paramsLocked(pos lsp.Position) (lsp.CursorParams, bool) {
	if a.path == "" || !isRustFile(a.path) {
		return lsp.CursorParams{}, false
	}
	return lsp.CursorParams{
		Position: pos,
		Document: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(a.path)},
	}, true
}

func isRustFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".rs")
}

// ReadDocument loads a file for display.
func ReadDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
