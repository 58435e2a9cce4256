package lsp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestClientStartMissingBinary(t *testing.T) {
	client := NewClient(ClientConfig{
		Command:   filepath.Join(t.TempDir(), "no-such-rustowl"),
		Workspace: t.TempDir(),
	})

	err := client.Start(context.Background())
	if err == nil {
		t.Fatal("expected start to fail for missing binary")
	}
	if client.Status() != ClientStatusError {
		t.Errorf("expected error status, got %v", client.Status())
	}
}

func TestClientRequestsBeforeStart(t *testing.T) {
	client := NewClient(ClientConfig{Command: "rustowl"})

	if _, err := client.Cursor(context.Background(), CursorParams{}); err != ErrNotStarted {
		t.Errorf("Cursor: expected ErrNotStarted, got %v", err)
	}
	if err := client.Analyze(); err != ErrNotStarted {
		t.Errorf("Analyze: expected ErrNotStarted, got %v", err)
	}
	if err := client.DidSave("/tmp/main.rs", ""); err != ErrNotStarted {
		t.Errorf("DidSave: expected ErrNotStarted, got %v", err)
	}
}

func TestClientShutdownBeforeStart(t *testing.T) {
	client := NewClient(ClientConfig{Command: "rustowl"})
	if err := client.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of stopped client should be a no-op, got %v", err)
	}
}

func TestCursorResultDecoding(t *testing.T) {
	// Payload shape as produced by the server, including an outlive
	// decoration without an overlapped field.
	payload := `{
		"is_analyzed": true,
		"status": "finished",
		"path": "/w/src/main.rs",
		"decorations": [
			{"type":"lifetime","range":{"start":{"line":3,"character":8},"end":{"line":3,"character":12}},"hover_text":"lifetime of x","overlapped":false},
			{"type":"mut_borrow","range":{"start":{"line":4,"character":4},"end":{"line":4,"character":9}},"hover_text":"mutable borrow","overlapped":true},
			{"type":"outlive","range":{"start":{"line":9,"character":0},"end":{"line":9,"character":5}},"hover_text":"outlives"}
		]
	}`

	var result CursorResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !result.IsAnalyzed || result.Status != StatusFinished {
		t.Errorf("unexpected header: %+v", result)
	}
	if len(result.Decorations) != 3 {
		t.Fatalf("expected 3 decorations, got %d", len(result.Decorations))
	}
	if result.Decorations[1].Type != "mut_borrow" || !result.Decorations[1].Overlapped {
		t.Errorf("unexpected decoration: %+v", result.Decorations[1])
	}
	if result.Decorations[2].Overlapped {
		t.Error("absent overlapped flag must decode as false")
	}
}

func TestFilePathToURIRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}

	path := "/home/dev/project/src/main.rs"
	uri := FilePathToURI(path)
	if !strings.HasPrefix(uri, "file://") {
		t.Fatalf("expected file URI, got %q", uri)
	}
	if got := URIToFilePath(uri); got != path {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestURIToFilePathNonFile(t *testing.T) {
	uri := "https://example.com/x"
	if got := URIToFilePath(uri); got != uri {
		t.Errorf("non-file URI should pass through, got %q", got)
	}
}

func TestIsProtocolError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rpc error", err: &RPCError{Code: CodeInternalError, Message: "boom"}, want: true},
		{name: "shutdown", err: ErrShutdown, want: false},
		{name: "malformed", err: ErrMalformedResponse, want: false},
		{name: "context cancel", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProtocolError(tt.err); got != tt.want {
				t.Errorf("IsProtocolError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
