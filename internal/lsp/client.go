package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// ClientStatus indicates the lifecycle state of a client.
type ClientStatus int

const (
	ClientStatusStopped ClientStatus = iota
	ClientStatusStarting
	ClientStatusInitializing
	ClientStatusReady
	ClientStatusShuttingDown
	ClientStatusError
)

// String returns a human-readable status name.
func (s ClientStatus) String() string {
	switch s {
	case ClientStatusStopped:
		return "stopped"
	case ClientStatusStarting:
		return "starting"
	case ClientStatusInitializing:
		return "initializing"
	case ClientStatusReady:
		return "ready"
	case ClientStatusShuttingDown:
		return "shutting down"
	case ClientStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ClientConfig defines how to start the rustowl process.
type ClientConfig struct {
	// Command is the resolved rustowl executable path.
	Command string

	// Args are command-line arguments. Empty means LSP-on-stdio mode.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// Workspace is the workspace root directory; used as the process
	// working directory and the rootUri of the handshake.
	Workspace string

	// Timeout bounds individual requests (default: 30s).
	Timeout time.Duration
}

// Client owns one rustowl process and the transport to it.
//
// A Client is single-use: once shut down (or crashed) it cannot be started
// again. The session supervisor constructs a fresh Client per session and
// always disposes the old one before the next, so at most one process owns
// the stdio transport.
type Client struct {
	mu sync.Mutex

	config ClientConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	transport *Transport

	status     atomic.Int32
	serverInfo *ServerInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a client for the given configuration. The process is
// not started until Start.
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	c := &Client{
		config: config,
	}
	c.status.Store(int32(ClientStatusStopped))
	return c
}

// Start spawns the process, wires the transport, and performs the
// initialize/initialized handshake.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() != ClientStatusStopped {
		return ErrAlreadyStarted
	}

	c.status.Store(int32(ClientStatusStarting))
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.startProcess(); err != nil {
		c.status.Store(int32(ClientStatusError))
		return err
	}

	c.transport = NewTransport(c.stdout, c.stdin, nil)
	c.transport.Start(c.ctx)

	go c.monitorProcess()

	c.status.Store(int32(ClientStatusInitializing))
	if err := c.initialize(c.ctx); err != nil {
		c.status.Store(int32(ClientStatusError))
		c.stopProcess()
		return fmt.Errorf("initialize: %w", err)
	}

	c.status.Store(int32(ClientStatusReady))
	slog.Info("rustowl session ready",
		"pid", c.cmd.Process.Pid,
		"workspace", c.config.Workspace,
		"server", c.serverName())
	return nil
}

func (c *Client) startProcess() error {
	cmd := exec.CommandContext(c.ctx, c.config.Command, c.config.Args...)

	cmd.Env = os.Environ()
	for k, v := range c.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if c.config.Workspace != "" {
		cmd.Dir = c.config.Workspace
	}
	// Server stderr passes through for diagnosis; stdout is the transport.
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("start %s: %w", c.config.Command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	return nil
}

// monitorProcess reaps the server process. Abnormal exits surface to
// the supervisor through the transport closing; here they only get a
// log line.
func (c *Client) monitorProcess() {
	err := c.cmd.Wait()
	if err != nil && c.Status() != ClientStatusShuttingDown && c.Status() != ClientStatusStopped {
		slog.Warn("rustowl process exited", "error", err)
	}
}

func (c *Client) stopProcess() {
	if c.transport != nil {
		c.transport.Close()
	}
	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.stdout != nil {
		c.stdout.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

func (c *Client) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProcessID: os.Getpid(),
		Capabilities: map[string]any{
			"workspace": map[string]any{
				"executeCommand": map[string]any{},
			},
		},
	}
	if c.config.Workspace != "" {
		uri := FilePathToURI(c.config.Workspace)
		params.RootURI = uri
		params.WorkspaceFolders = []WorkspaceFolder{{URI: uri, Name: "workspace"}}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result InitializeResult
	if err := c.transport.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}
	c.serverInfo = result.ServerInfo

	if err := c.transport.Notify("initialized", struct{}{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// Shutdown performs the shutdown/exit sequence and reaps the process.
// Safe to call on an already-stopped client.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.Status()
	if status == ClientStatusStopped || status == ClientStatusShuttingDown {
		return nil
	}
	c.status.Store(int32(ClientStatusShuttingDown))

	if c.transport != nil && !c.transport.IsClosed() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = c.transport.Call(shutdownCtx, "shutdown", nil, nil)
		_ = c.transport.Notify("exit", nil)
		cancel()
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.stopProcess()

	c.status.Store(int32(ClientStatusStopped))
	slog.Info("rustowl session stopped")
	return nil
}

// Status returns the current client status.
func (c *Client) Status() ClientStatus {
	return ClientStatus(c.status.Load())
}

// PID returns the server process id, or 0 before start.
func (c *Client) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Pid
	}
	return 0
}

func (c *Client) serverName() string {
	if c.serverInfo == nil {
		return ""
	}
	return c.serverInfo.Name
}

// TransportClosed is closed when the transport shuts down, including
// server-side stream closure without process exit.
func (c *Client) TransportClosed() <-chan struct{} {
	return c.transport.Done()
}

// --- rustowl extension surface ---

// Cursor issues a rustowl/cursor query for the given document position.
func (c *Client) Cursor(ctx context.Context, params CursorParams) (*CursorResult, error) {
	if c.Status() != ClientStatusReady {
		return nil, ErrNotStarted
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var raw json.RawMessage
	if err := c.transport.Call(ctx, MethodCursor, params, &raw); err != nil {
		return nil, err
	}

	var result CursorResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.Status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrMalformedResponse)
	}
	return &result, nil
}

// Analyze requests a full re-analysis of the workspace.
func (c *Client) Analyze() error {
	if c.Status() != ClientStatusReady {
		return ErrNotStarted
	}
	return c.transport.Notify(MethodAnalyze, nil)
}

// ToggleOwnership toggles ownership visualization for a document position
// via workspace/executeCommand.
func (c *Client) ToggleOwnership(ctx context.Context, uri string, pos Position) error {
	if c.Status() != ClientStatusReady {
		return ErrNotStarted
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	params := ExecuteCommandParams{
		Command:   CmdToggleOwnership,
		Arguments: []any{uri, pos.Line, pos.Character},
	}
	return c.transport.Call(ctx, "workspace/executeCommand", params, nil)
}

// DidOpen announces a document to the server.
func (c *Client) DidOpen(path, content string) error {
	if c.Status() != ClientStatusReady {
		return ErrNotStarted
	}
	return c.transport.Notify("textDocument/didOpen", DidOpenParams{
		TextDocument: TextDocumentItem{
			URI:        FilePathToURI(path),
			LanguageID: "rust",
			Version:    1,
			Text:       content,
		},
	})
}

// DidSave announces a document save; the server re-analyzes on save.
func (c *Client) DidSave(path, content string) error {
	if c.Status() != ClientStatusReady {
		return ErrNotStarted
	}
	return c.transport.Notify("textDocument/didSave", DidSaveParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
		Text:         content,
	})
}
