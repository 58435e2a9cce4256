package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/borrowscope/borrowscope/internal/lsp"
	"github.com/borrowscope/borrowscope/internal/toolchain"
)

// Client is the slice of the rustowl client the supervisor drives. A
// client is single-use: disposed on stop and replaced by a fresh one on
// restart.
type Client interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Cursor(ctx context.Context, params lsp.CursorParams) (*lsp.CursorResult, error)
	Analyze() error
	ToggleOwnership(ctx context.Context, uri string, pos lsp.Position) error
	DidOpen(path, content string) error
	DidSave(path, content string) error
	PID() int
	TransportClosed() <-chan struct{}
}

// BinaryResolver locates or installs the rustowl binary. Satisfied by
// *toolchain.Resolver.
type BinaryResolver interface {
	Resolve(ctx context.Context) (*toolchain.ServerLocation, error)
	ForceUpdate(ctx context.Context) (*toolchain.ServerLocation, error)
}

// ClientFactory builds a client for a resolved server binary. Injected
// so tests can supervise fakes.
type ClientFactory func(loc *toolchain.ServerLocation, workspace string) Client

// DefaultClientFactory spawns a real rustowl process.
func DefaultClientFactory(loc *toolchain.ServerLocation, workspace string) Client {
	return lsp.NewClient(lsp.ClientConfig{
		Command:   loc.Path,
		Workspace: workspace,
	})
}

// Notification is a state-change report delivered to the owner (status
// line and prompt surface).
type Notification struct {
	SessionID uuid.UUID
	State     State
	Tally     Tally
	// Prompt is set when the session went fatal and the user must choose
	// between restart and update.
	Prompt bool
}

// Supervisor owns the single live session handle. All lifecycle
// operations are serialized: a restart is a full stop followed by a
// full start, and the old client is disposed before the new one is
// created.
type Supervisor struct {
	resolver  BinaryResolver
	workspace string
	factory   ClientFactory

	mu      sync.Mutex
	state   State
	tally   Tally
	client  Client
	id      uuid.UUID
	stopMon context.CancelFunc

	notify chan Notification
}

// NewSupervisor creates a supervisor in the stopped state.
func NewSupervisor(resolver BinaryResolver, workspace string, factory ClientFactory) *Supervisor {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &Supervisor{
		resolver:  resolver,
		workspace: workspace,
		factory:   factory,
		state:     StateStopped,
		notify:    make(chan Notification, 16),
	}
}

// Notifications returns the state-change channel. Sends never block;
// reports are dropped if the buffer is full.
func (s *Supervisor) Notifications() <-chan Notification { return s.notify }

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the id of the current session, or uuid.Nil when
// stopped.
func (s *Supervisor) SessionID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Tally returns a copy of the current error accounting.
func (s *Supervisor) Tally() Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally
}

// Start resolves the server binary and brings up a session. Returns an
// error if one is already live or starting.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped && s.state != StateShutdownFatal {
		return fmt.Errorf("session already %s", s.state)
	}
	s.tally = Tally{}
	return s.startLocked(ctx)
}

// startLocked performs resolution and handshake. The tally is kept:
// auto-restart after a crash must not forget how many crashes came
// before. Caller holds s.mu.
func (s *Supervisor) startLocked(ctx context.Context) error {
	s.state = StateStarting
	s.publish(false)

	loc, err := s.resolver.Resolve(ctx)
	if err != nil {
		s.failLocked(err)
		return err
	}

	client := s.factory(loc, s.workspace)
	if err := client.Start(ctx); err != nil {
		err = fmt.Errorf("starting rustowl: %w", err)
		s.failLocked(err)
		return err
	}

	s.client = client
	s.id = uuid.New()
	s.transition(Event{Kind: EventStarted})
	slog.Info("session started",
		"session", s.id, "pid", client.PID(), "origin", loc.Origin, "path", loc.Path)

	monCtx, cancel := context.WithCancel(context.Background())
	s.stopMon = cancel
	go s.monitor(monCtx, client, s.id)
	return nil
}

// Stop disposes the live client, if any, and moves to stopped.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
	s.transition(Event{Kind: EventStopRequested})
	return nil
}

// stopLocked tears down the current client. Caller holds s.mu.
func (s *Supervisor) stopLocked(ctx context.Context) {
	if s.stopMon != nil {
		s.stopMon()
		s.stopMon = nil
	}
	if s.client != nil {
		if err := s.client.Shutdown(ctx); err != nil {
			slog.Warn("session shutdown", "session", s.id, "error", err)
		}
		s.client = nil
	}
	s.id = uuid.Nil
}

// Restart fully disposes the current session and starts a new one,
// re-running binary resolution. Clears the error tally.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
	s.tally = Tally{}
	return s.startLocked(ctx)
}

// Update stops the session, forces a reinstall of the server binary,
// and starts a fresh session against the new build.
func (s *Supervisor) Update(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
	s.tally = Tally{}
	s.state = StateStarting
	s.publish(false)
	if _, err := s.resolver.ForceUpdate(ctx); err != nil {
		s.failLocked(err)
		return err
	}
	return s.startLocked(ctx)
}

// failLocked records a failed lifecycle operation: resolution,
// handshake, or update. The supervisor lands in Stopped so a plain
// Start can retry; the prompt still offers the restart/update choice.
// Caller holds s.mu.
func (s *Supervisor) failLocked(err error) {
	s.state = StateStopped
	s.tally.LastError = err.Error()
	s.publish(true)
}

// monitor watches a specific client for transport loss. It reports only
// for the session it was started with; a session replaced by restart is
// ignored.
func (s *Supervisor) monitor(ctx context.Context, client Client, id uuid.UUID) {
	select {
	case <-ctx.Done():
		return
	case <-client.TransportClosed():
	}

	s.mu.Lock()
	if s.id != id {
		s.mu.Unlock()
		return
	}
	slog.Warn("rustowl transport closed", "session", id)
	s.stopLocked(context.Background())
	action := s.transition(Event{Kind: EventTransportClosed, Err: fmt.Errorf("rustowl exited unexpectedly")})

	if action != ActionRestart {
		s.mu.Unlock()
		return
	}
	err := s.startLocked(context.Background())
	s.mu.Unlock()
	if err != nil {
		slog.Error("session restart failed", "error", err)
	}
}

// Cursor forwards an ownership query to the live client and folds the
// outcome into the error tally. Malformed responses are discarded
// without affecting the tally.
func (s *Supervisor) Cursor(ctx context.Context, params lsp.CursorParams) (*lsp.CursorResult, error) {
	client, err := s.liveClient()
	if err != nil {
		return nil, err
	}
	result, err := client.Cursor(ctx, params)
	s.record(err)
	return result, err
}

// Analyze asks the server to analyze the workspace.
func (s *Supervisor) Analyze() error {
	client, err := s.liveClient()
	if err != nil {
		return err
	}
	return client.Analyze()
}

// ToggleOwnership flips the server-side ownership display at a position.
func (s *Supervisor) ToggleOwnership(ctx context.Context, uri string, pos lsp.Position) error {
	client, err := s.liveClient()
	if err != nil {
		return err
	}
	err = client.ToggleOwnership(ctx, uri, pos)
	s.record(err)
	return err
}

// DidOpen reports a newly opened document to the server.
func (s *Supervisor) DidOpen(path, content string) error {
	client, err := s.liveClient()
	if err != nil {
		return err
	}
	return client.DidOpen(path, content)
}

// DidSave reports a saved document to the server.
func (s *Supervisor) DidSave(path, content string) error {
	client, err := s.liveClient()
	if err != nil {
		return err
	}
	return client.DidSave(path, content)
}

func (s *Supervisor) liveClient() (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || !s.state.Live() {
		return nil, lsp.ErrNotStarted
	}
	return s.client, nil
}

// record applies a query outcome to the tally. Only protocol-level
// failures count against the session; context cancellation and local
// decode failures do not.
func (s *Supervisor) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Live() {
		return
	}
	if err == nil {
		s.transition(Event{Kind: EventExchangeOK})
		return
	}
	if !lsp.IsProtocolError(err) {
		return
	}
	action := s.transition(Event{Kind: EventProtocolError, Err: err})
	if action == ActionPromptFatal {
		s.stopLocked(context.Background())
	}
}

// transition runs Apply under s.mu, publishes on state change, and
// returns the action. Caller holds s.mu.
func (s *Supervisor) transition(ev Event) Action {
	prev := s.state
	next, tally, action := Apply(s.state, s.tally, ev)
	s.state = next
	s.tally = tally
	if next != prev || action == ActionPromptFatal {
		s.publish(action == ActionPromptFatal)
	}
	return action
}

// publish sends a notification without blocking. Caller holds s.mu.
func (s *Supervisor) publish(prompt bool) {
	n := Notification{SessionID: s.id, State: s.state, Tally: s.tally, Prompt: prompt}
	select {
	case s.notify <- n:
	default:
	}
}
