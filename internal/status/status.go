// Package status turns session and analysis state into the user-facing
// status line and fatal-session prompt.
package status

import (
	"fmt"
	"sync"

	"github.com/borrowscope/borrowscope/internal/lsp"
	"github.com/borrowscope/borrowscope/internal/session"
)

// Analysis is the server-side analysis phase shown in the status line.
type Analysis int

const (
	AnalysisIdle Analysis = iota
	AnalysisRunning
	AnalysisFinished
	AnalysisError
)

// String returns the status-line label for the phase.
func (a Analysis) String() string {
	switch a {
	case AnalysisIdle:
		return "idle"
	case AnalysisRunning:
		return "analyzing"
	case AnalysisFinished:
		return "analyzed"
	case AnalysisError:
		return "analysis error"
	default:
		return "unknown"
	}
}

// AnalysisFromStatus maps a wire analysis status onto a phase.
func AnalysisFromStatus(s lsp.AnalysisStatus) Analysis {
	switch s {
	case lsp.StatusAnalyzing:
		return AnalysisRunning
	case lsp.StatusFinished:
		return AnalysisFinished
	case lsp.StatusError:
		return AnalysisError
	default:
		return AnalysisIdle
	}
}

// PromptChoice is a user decision offered by the fatal-session prompt.
type PromptChoice int

const (
	// ChoiceRestart restarts the session against the existing binary.
	ChoiceRestart PromptChoice = iota
	// ChoiceUpdate reinstalls the binary, then restarts.
	ChoiceUpdate
	// ChoiceDismiss leaves the session down.
	ChoiceDismiss
)

// View is an immutable snapshot of everything the UI draws.
type View struct {
	Session  session.State
	Analysis Analysis
	Mode     string
	Message  string
	// Prompting is true while the fatal-session prompt is open.
	Prompting bool
	// PromptText is the prompt body, set while Prompting.
	PromptText string
}

// Line composes the status-line text from the snapshot. The transient
// message wins over the steady state.
func (v View) Line() string {
	if v.Message != "" {
		return v.Message
	}
	base := fmt.Sprintf("rustowl: %s", v.Session)
	if v.Session.Live() {
		base = fmt.Sprintf("rustowl: %s | %s", v.Session, v.Analysis)
	}
	if v.Mode != "" {
		base += fmt.Sprintf(" | mode: %s", v.Mode)
	}
	return base
}

// Listener is invoked after every model change so the UI can redraw.
type Listener func(View)

// Model holds the presenter state. Safe for concurrent use; the
// session supervisor, the query pipeline, and the input loop all write
// to it.
type Model struct {
	mu       sync.Mutex
	view     View
	listener Listener
}

// NewModel creates a presenter with an optional redraw listener.
func NewModel(listener Listener) *Model {
	return &Model{
		view:     View{Session: session.StateStopped, Analysis: AnalysisIdle},
		listener: listener,
	}
}

// Snapshot returns the current view.
func (m *Model) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// SetSession records a session state change. A fatal transition opens
// the restart/update prompt; any non-fatal one closes it.
func (m *Model) SetSession(n session.Notification) {
	m.update(func(v *View) {
		v.Session = n.State
		if !n.State.Live() {
			v.Analysis = AnalysisIdle
		}
		if n.Prompt {
			v.Prompting = true
			v.PromptText = promptText(n.Tally)
			return
		}
		if n.State != session.StateShutdownFatal {
			v.Prompting = false
			v.PromptText = ""
		}
	})
}

// SetAnalysis records the analysis phase reported by the server.
func (m *Model) SetAnalysis(a Analysis) {
	m.update(func(v *View) { v.Analysis = a })
}

// SetMode records the display mode label.
func (m *Model) SetMode(mode string) {
	m.update(func(v *View) { v.Mode = mode })
}

// SetMessage shows a transient message in place of the steady line.
func (m *Model) SetMessage(msg string) {
	m.update(func(v *View) { v.Message = msg })
}

// ClearMessage restores the steady status line.
func (m *Model) ClearMessage() {
	m.update(func(v *View) { v.Message = "" })
}

// ClosePrompt dismisses the fatal-session prompt.
func (m *Model) ClosePrompt() {
	m.update(func(v *View) {
		v.Prompting = false
		v.PromptText = ""
	})
}

func (m *Model) update(fn func(*View)) {
	m.mu.Lock()
	fn(&m.view)
	view := m.view
	listener := m.listener
	m.mu.Unlock()
	if listener != nil {
		listener(view)
	}
}

func promptText(tally session.Tally) string {
	reason := tally.LastError
	if reason == "" {
		reason = "repeated failures"
	}
	if tally.TransportClosures >= session.FatalThreshold {
		return fmt.Sprintf("rustowl keeps crashing (%s). [r]estart  [u]pdate  [esc] dismiss", reason)
	}
	return fmt.Sprintf("rustowl session gave up (%s). [r]estart  [u]pdate  [esc] dismiss", reason)
}
