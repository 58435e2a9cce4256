package lsp

import "encoding/json"

// Custom protocol methods spoken by rustowl beyond the standard LSP set.
const (
	MethodCursor  = "rustowl/cursor"
	MethodAnalyze = "rustowl/analyze"

	// CmdToggleOwnership is the workspace/executeCommand name for toggling
	// ownership visualization for a document position.
	CmdToggleOwnership = "rustowl.toggleOwnership"
)

// Position is a zero-based line/character pair, UTF-16 per LSP.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span within a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextDocumentIdentifier names a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// CursorParams is the payload of a rustowl/cursor request.
type CursorParams struct {
	Position Position               `json:"position"`
	Document TextDocumentIdentifier `json:"document"`
}

// AnalysisStatus reports the server's analysis progress.
type AnalysisStatus string

const (
	StatusAnalyzing AnalysisStatus = "analyzing"
	StatusFinished  AnalysisStatus = "finished"
	StatusError     AnalysisStatus = "error"
)

// WireDecoration is one decoration as sent by the server. The type tag is a
// snake_case string; unknown tags are preserved for forward compatibility
// and classified downstream.
//
// The outlive variant carries no overlapped field on the wire; absence
// decodes as false.
type WireDecoration struct {
	Type       string `json:"type"`
	Range      Range  `json:"range"`
	HoverText  string `json:"hover_text,omitempty"`
	Overlapped bool   `json:"overlapped"`
}

// CursorResult is the response to a rustowl/cursor request.
type CursorResult struct {
	IsAnalyzed  bool             `json:"is_analyzed"`
	Status      AnalysisStatus   `json:"status"`
	Path        string           `json:"path,omitempty"`
	Decorations []WireDecoration `json:"decorations"`
}

// ExecuteCommandParams is the standard workspace/executeCommand payload.
type ExecuteCommandParams struct {
	Command   string `json:"command"`
	Arguments []any  `json:"arguments,omitempty"`
}

// InitializeParams is the subset of the LSP initialize payload rustowl
// consumes.
type InitializeParams struct {
	ProcessID             int              `json:"processId"`
	RootURI               string           `json:"rootUri,omitempty"`
	Capabilities          map[string]any   `json:"capabilities"`
	InitializationOptions any              `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder names a workspace root.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// InitializeResult is the server's handshake response.
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ServerInfo     `json:"serverInfo,omitempty"`
}

// ServerInfo identifies the server from the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// DidOpenParams is the textDocument/didOpen payload.
type DidOpenParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentItem is a full document snapshot.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// DidSaveParams is the textDocument/didSave payload.
type DidSaveParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         string                 `json:"text,omitempty"`
}
