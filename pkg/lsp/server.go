// Package lsp provides a Language Server Protocol server that offers the
// rustassist assists as code actions.
package lsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/Sumatoshi-tech/rustassist/pkg/assist"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/service"
	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
	"github.com/Sumatoshi-tech/rustassist/pkg/version"
)

const (
	serverName       = "rustassist"
	opCodeAction     = "lsp.code_action"
	standaloneUnit   = "main"
	methodCodeAction = "textDocument/codeAction"
)

// ErrWorkspaceLoading reports a server whose loader has not run yet.
var ErrWorkspaceLoading = errors.New("workspace not loaded")

// Workspace is the project view the server overlays open documents onto.
// *workspace.Workspace implements it.
type Workspace interface {
	Overlay(ctx context.Context, path, content string) (*syntax.File, error)
	Database() *semantic.Database
}

// Loader opens the workspace at root, called once on initialize.
type Loader func(ctx context.Context, root string) (Workspace, error)

// Options configures a Server.
type Options struct {
	Service *service.Service

	// Workspace is used as is when set; otherwise Loader runs on the
	// client's root. With neither, each document is analyzed on its own.
	Workspace Workspace
	Loader    Loader

	// Semantic options for standalone documents.
	Semantic []semantic.Option

	Logger *slog.Logger
	RED    *observability.REDMetrics
}

// Server implements the rustassist LSP server.
type Server struct {
	store    *DocumentStore
	handler  protocol.Handler
	svc      *service.Service
	loader   Loader
	semantic []semantic.Option
	logger   *slog.Logger
	red      *observability.REDMetrics

	mu      sync.RWMutex
	ws      Workspace
	loading bool
	loaded  bool
}

// NewServer creates a new LSP server with default handlers.
func NewServer(opts Options) *Server {
	srv := &Server{
		store:    NewDocumentStore(),
		svc:      opts.Service,
		loader:   opts.Loader,
		semantic: opts.Semantic,
		logger:   observability.Component(opts.Logger, "lsp"),
		red:      opts.RED,
		ws:       opts.Workspace,
	}

	if srv.svc == nil {
		srv.svc = service.New(service.WithLogger(opts.Logger))
	}

	srv.handler = protocol.Handler{
		Initialize:             srv.initialize,
		Initialized:            srv.initialized,
		Shutdown:               srv.shutdown,
		SetTrace:               srv.setTrace,
		TextDocumentDidOpen:    srv.didOpen,
		TextDocumentDidChange:  srv.didChange,
		TextDocumentDidClose:   srv.didClose,
		TextDocumentCodeAction: srv.codeAction,
	}

	return srv
}

// Run starts the LSP server on stdio.
func (srv *Server) Run() error {
	lspServer := server.NewServer(&srv.handler, serverName, false)

	err := lspServer.RunStdio()
	if err != nil {
		return fmt.Errorf("lsp server: %w", err)
	}

	return nil
}

func (srv *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()

	openClose := true
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = protocol.TextDocumentSyncOptions{
		OpenClose: &openClose,
		Change:    &syncKind,
	}
	capabilities.CodeActionProvider = protocol.CodeActionOptions{
		CodeActionKinds: []protocol.CodeActionKind{protocol.CodeActionKindRefactorRewrite},
	}

	if root := rootPath(params); root != "" {
		srv.loadWorkspace(root)
	}

	ver := version.Version

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &ver,
		},
	}, nil
}

func rootPath(params *protocol.InitializeParams) string {
	if params == nil {
		return ""
	}

	if params.RootURI != nil && *params.RootURI != "" {
		return URIToPath(*params.RootURI)
	}

	if params.RootPath != nil {
		return *params.RootPath
	}

	return ""
}

func (srv *Server) loadWorkspace(root string) {
	srv.mu.Lock()

	if srv.ws != nil || srv.loader == nil || srv.loading {
		srv.mu.Unlock()

		return
	}

	srv.loading = true
	srv.mu.Unlock()

	ws, err := srv.loader(context.Background(), root)

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.loading = false
	srv.loaded = true

	if err != nil {
		srv.logger.Warn("workspace load failed, analyzing documents standalone", "workspace.root", root, "error", err)

		return
	}

	srv.ws = ws
}

func (srv *Server) workspace() Workspace {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	return srv.ws
}

// Ready implements a readiness check: a server with a loader is ready once
// the load finished, even if it failed.
func (srv *Server) Ready(_ context.Context) error {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	if srv.loader == nil || srv.ws != nil || srv.loaded {
		return nil
	}

	return ErrWorkspaceLoading
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	srv.store.Set(params.TextDocument.URI, params.TextDocument.Text)

	return nil
}

func (srv *Server) didChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	text, _ := srv.store.Get(uri)

	for _, change := range params.ContentChanges {
		text = applyChange(text, change)
	}

	srv.store.Set(uri, text)

	return nil
}

// applyChange applies one content change event. Whole-document and ranged
// events are both accepted.
func applyChange(text string, change any) string {
	switch event := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return event.Text
	case protocol.TextDocumentContentChangeEvent:
		if event.Range == nil {
			return event.Text
		}

		start := OffsetAt(text, event.Range.Start)
		end := max(start, OffsetAt(text, event.Range.End))

		return text[:start] + event.Text + text[end:]
	case map[string]any:
		if whole, ok := event["text"].(string); ok {
			return whole
		}
	}

	return text
}

func (srv *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	srv.store.Delete(params.TextDocument.URI)

	return nil
}

func (srv *Server) codeAction(_ *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	ctx := context.Background()
	start := time.Now()

	done := srv.red.TrackInflight(ctx, opCodeAction)
	defer done()

	actions, err := srv.computeActions(ctx, params)

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError
	}

	srv.red.RecordRequest(ctx, opCodeAction, status, time.Since(start))

	if err != nil {
		srv.logger.WarnContext(ctx, "code action failed", "lsp.method", methodCodeAction, "error", err)

		return nil, err
	}

	return actions, nil
}

func (srv *Server) computeActions(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	if !wantsKind(params.Context.Only, protocol.CodeActionKindRefactorRewrite) {
		return nil, nil
	}

	uri := params.TextDocument.URI

	text, ok := srv.store.Get(uri)
	if !ok {
		return nil, nil
	}

	file, db, err := srv.analyze(ctx, uri, text)
	if err != nil {
		return nil, err
	}

	offset := OffsetAt(text, params.Range.Start)

	proposal, reason := srv.svc.Propose(ctx, db, file, offset)
	if proposal == nil {
		srv.logger.DebugContext(ctx, "no code action", "file.path", file.Path, "assist.reason", string(reason))

		return nil, nil
	}

	return []protocol.CodeAction{toCodeAction(uri, text, proposal)}, nil
}

// analyze parses text into the workspace overlay, or into a one-file
// database when there is no workspace.
func (srv *Server) analyze(ctx context.Context, uri, text string) (*syntax.File, *semantic.Database, error) {
	path := URIToPath(uri)

	if ws := srv.workspace(); ws != nil {
		file, err := ws.Overlay(ctx, path, text)
		if err != nil {
			return nil, nil, fmt.Errorf("overlay %s: %w", path, err)
		}

		return file, ws.Database(), nil
	}

	file, err := srv.svc.Parser().ParseString(ctx, path, text)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	db := semantic.NewDatabase(srv.semantic...)

	unit, err := db.AddUnit(standaloneUnit)
	if err != nil {
		return nil, nil, fmt.Errorf("standalone unit: %w", err)
	}

	err = db.AddFile(unit, file)
	if err != nil {
		return nil, nil, fmt.Errorf("standalone file: %w", err)
	}

	return file, db, nil
}

func wantsKind(only []protocol.CodeActionKind, kind protocol.CodeActionKind) bool {
	if len(only) == 0 {
		return true
	}

	for _, want := range only {
		if want == kind || strings.HasPrefix(string(kind), string(want)+".") {
			return true
		}
	}

	return false
}

func toCodeAction(uri, text string, proposal *assist.Proposal) protocol.CodeAction {
	kind := protocol.CodeActionKindRefactorRewrite
	pos := PositionAt(text, proposal.InsertionOffset)

	return protocol.CodeAction{
		Title: proposal.Label,
		Kind:  &kind,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{
				uri: {{
					Range:   protocol.Range{Start: pos, End: pos},
					NewText: proposal.InsertedText,
				}},
			},
		},
		Data: proposal.ID,
	}
}
