// Package session owns the single live rustowl connection: its lifecycle
// state machine, error accounting, and restart/update orchestration.
package session

// State is the lifecycle state of the supervised session.
type State int

const (
	// StateStopped means no client exists.
	StateStopped State = iota
	// StateStarting means resolution/handshake is in progress.
	StateStarting
	// StateRunning means the session serves queries.
	StateRunning
	// StateErrorBackoff is Running with a non-empty error tally. The
	// connection is still used; the annotation only tracks how close the
	// session is to escalation.
	StateErrorBackoff
	// StateShutdownFatal means the session gave up. No auto-restart
	// happens; the user chooses restart or update explicitly.
	StateShutdownFatal
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateErrorBackoff:
		return "error-backoff"
	case StateShutdownFatal:
		return "shutdown-fatal"
	default:
		return "unknown"
	}
}

// Live reports whether a client connection exists in this state.
func (s State) Live() bool {
	return s == StateRunning || s == StateErrorBackoff
}

// FatalThreshold is the consecutive-failure count that forces a
// non-auto-restarting shutdown. Applies independently to protocol errors
// and transport closures.
const FatalThreshold = 3

// Tally is the error accounting threaded through Apply. It is a plain
// value: no hidden captured state, so threshold behavior is directly
// unit-testable.
type Tally struct {
	// LastError is the most recent failure description, empty when clean.
	LastError string

	// ProtocolErrors counts consecutive protocol-level failures.
	// Reset by any successful exchange.
	ProtocolErrors int

	// TransportClosures counts consecutive transport losses (crashes or
	// closed streams). Reset by any successful exchange. Kept separate
	// from ProtocolErrors; the two kinds of failure escalate
	// independently.
	TransportClosures int
}

// EventKind identifies a session event.
type EventKind int

const (
	// EventStarted fires when the handshake completes.
	EventStarted EventKind = iota
	// EventExchangeOK fires on a successful protocol exchange.
	EventExchangeOK
	// EventProtocolError fires when an exchange fails at protocol level.
	EventProtocolError
	// EventTransportClosed fires when the process dies or the stream
	// closes.
	EventTransportClosed
	// EventStopRequested fires on explicit stop (including the stop half
	// of restart/update).
	EventStopRequested
)

// String returns a human-readable event name.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventExchangeOK:
		return "exchange-ok"
	case EventProtocolError:
		return "protocol-error"
	case EventTransportClosed:
		return "transport-closed"
	case EventStopRequested:
		return "stop-requested"
	default:
		return "unknown"
	}
}

// Event is one input to the transition function.
type Event struct {
	Kind EventKind
	Err  error
}

// Action tells the supervisor what to do after a transition.
type Action int

const (
	// ActionNone requires nothing.
	ActionNone Action = iota
	// ActionRestart asks for dispose-then-start of a fresh client.
	ActionRestart
	// ActionPromptFatal asks for a user-facing prompt with restart and
	// update choices. The supervisor must not restart on its own.
	ActionPromptFatal
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRestart:
		return "restart"
	case ActionPromptFatal:
		return "prompt-fatal"
	default:
		return "unknown"
	}
}

// Apply is the pure transition function (state, tally, event) ->
// (state', tally', action). It performs no I/O and captures nothing.
func Apply(state State, tally Tally, ev Event) (State, Tally, Action) {
	switch ev.Kind {
	case EventStarted:
		// A fresh handshake clears protocol accounting but keeps the
		// closure count: a server that dies right after starting must
		// still escalate.
		tally.ProtocolErrors = 0
		tally.LastError = ""
		return StateRunning, tally, ActionNone

	case EventExchangeOK:
		return StateRunning, Tally{}, ActionNone

	case EventProtocolError:
		if !state.Live() {
			return state, tally, ActionNone
		}
		tally.ProtocolErrors++
		tally.LastError = errString(ev.Err)
		if tally.ProtocolErrors >= FatalThreshold {
			return StateShutdownFatal, tally, ActionPromptFatal
		}
		return StateErrorBackoff, tally, ActionNone

	case EventTransportClosed:
		if !state.Live() && state != StateStarting {
			return state, tally, ActionNone
		}
		tally.TransportClosures++
		tally.LastError = errString(ev.Err)
		if tally.TransportClosures >= FatalThreshold {
			return StateShutdownFatal, tally, ActionPromptFatal
		}
		return StateStarting, tally, ActionRestart

	case EventStopRequested:
		return StateStopped, Tally{}, ActionNone

	default:
		return state, tally, ActionNone
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
