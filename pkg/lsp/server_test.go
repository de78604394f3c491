package lsp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/workspace"
)

const testURI = "file:///tmp/project/src/lib.rs"

var errLoadFailed = errors.New("load failed")

func TestDocumentStore(t *testing.T) {
	t.Parallel()

	store := NewDocumentStore()

	_, ok := store.Get(testURI)
	assert.False(t, ok)

	store.Set(testURI, "first")
	store.Set(testURI, "second")

	got, ok := store.Get(testURI)
	require.True(t, ok)
	assert.Equal(t, "second", got)

	store.Delete(testURI)

	_, ok = store.Get(testURI)
	assert.False(t, ok)
}

func TestOffsetAt_UTF16(t *testing.T) {
	t.Parallel()

	// "é" is two bytes and one UTF-16 unit; the emoji is four bytes and two units.
	text := "// é 😀 x\nenum A { One(u32) }\n"

	assert.Equal(t, 0, OffsetAt(text, protocol.Position{Line: 0, Character: 0}))
	assert.Equal(t, strings.Index(text, "😀"), OffsetAt(text, protocol.Position{Line: 0, Character: 5}))
	assert.Equal(t, strings.Index(text, "x"), OffsetAt(text, protocol.Position{Line: 0, Character: 8}))
	assert.Equal(t, strings.Index(text, "One"), OffsetAt(text, protocol.Position{Line: 1, Character: 9}))
	assert.Equal(t, strings.Index(text, "\n"), OffsetAt(text, protocol.Position{Line: 0, Character: 99}))
	assert.Equal(t, len(text), OffsetAt(text, protocol.Position{Line: 9, Character: 0}))
}

func TestPositionAt_RoundTrip(t *testing.T) {
	t.Parallel()

	text := "// é 😀 x\nenum A { One(u32) }\n"

	for _, needle := range []string{"😀", "x", "One", "}"} {
		offset := strings.Index(text, needle)
		assert.Equal(t, offset, OffsetAt(text, PositionAt(text, offset)), needle)
	}

	assert.Equal(t, protocol.Position{Line: 0, Character: 8}, PositionAt(text, strings.Index(text, "x")))
	assert.Equal(t, protocol.Position{Line: 2, Character: 0}, PositionAt(text, len(text)))
}

func TestURIToPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.FromSlash("/tmp/project/src/lib.rs"), URIToPath(testURI))
	assert.Equal(t, filepath.FromSlash("/tmp/a b.rs"), URIToPath("file:///tmp/a%20b.rs"))
	assert.Equal(t, "untitled:Untitled-1", URIToPath("untitled:Untitled-1"))
}

func TestApplyChange(t *testing.T) {
	t.Parallel()

	text := "enum A { One(u32) }"

	assert.Equal(t, "whole", applyChange(text, protocol.TextDocumentContentChangeEventWhole{Text: "whole"}))
	assert.Equal(t, "map", applyChange(text, map[string]any{"text": "map"}))
	assert.Equal(t, text, applyChange(text, 42))

	ranged := protocol.TextDocumentContentChangeEvent{
		Range: &protocol.Range{
			Start: protocol.Position{Line: 0, Character: 9},
			End:   protocol.Position{Line: 0, Character: 12},
		},
		Text: "Two",
	}
	assert.Equal(t, "enum A { Two(u32) }", applyChange(text, ranged))
}

func TestWantsKind(t *testing.T) {
	t.Parallel()

	kind := protocol.CodeActionKindRefactorRewrite

	assert.True(t, wantsKind(nil, kind))
	assert.True(t, wantsKind([]protocol.CodeActionKind{protocol.CodeActionKindRefactor}, kind))
	assert.True(t, wantsKind([]protocol.CodeActionKind{kind}, kind))
	assert.False(t, wantsKind([]protocol.CodeActionKind{protocol.CodeActionKindQuickFix}, kind))
}

func codeActionAt(t *testing.T, srv *Server, uri, needle string) []protocol.CodeAction {
	t.Helper()

	text, ok := srv.store.Get(uri)
	require.True(t, ok)

	pos := PositionAt(text, strings.Index(text, needle))

	result, err := srv.codeAction(nil, &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Range:        protocol.Range{Start: pos, End: pos},
	})
	require.NoError(t, err)

	actions, ok := result.([]protocol.CodeAction)
	require.True(t, ok)

	return actions
}

func TestCodeAction_Standalone(t *testing.T) {
	t.Parallel()

	srv := NewServer(Options{Semantic: []semantic.Option{semantic.WithBuiltinCore()}})

	text := "enum A { One(u32), Two }\n"
	require.NoError(t, srv.didOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testURI, LanguageID: "rust", Text: text},
	}))

	actions := codeActionAt(t, srv, testURI, "One")
	require.Len(t, actions, 1)

	action := actions[0]
	assert.Equal(t, "Generate `From` impl for this enum variant", action.Title)
	require.NotNil(t, action.Kind)
	assert.Equal(t, protocol.CodeActionKindRefactorRewrite, *action.Kind)

	edits := action.Edit.Changes[testURI]
	require.Len(t, edits, 1)

	end := PositionAt(text, strings.Index(text, "\n"))
	assert.Equal(t, protocol.Range{Start: end, End: end}, edits[0].Range)
	assert.True(t, strings.HasPrefix(edits[0].NewText, "\n\nimpl From<u32> for A {"))

	assert.Empty(t, codeActionAt(t, srv, testURI, "Two"))
}

func TestCodeAction_FollowsChanges(t *testing.T) {
	t.Parallel()

	srv := NewServer(Options{Semantic: []semantic.Option{semantic.WithBuiltinCore()}})

	require.NoError(t, srv.didOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: testURI, Text: "enum A { One(u32) }\n"},
	}))
	require.Len(t, codeActionAt(t, srv, testURI, "One"), 1)

	implemented := "enum A { One(u32) }\nimpl From<u32> for A { fn from(v: u32) -> Self { A::One(v) } }\n"
	require.NoError(t, srv.didChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: implemented}},
	}))
	assert.Empty(t, codeActionAt(t, srv, testURI, "One"))

	require.NoError(t, srv.didClose(nil, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	}))

	_, ok := srv.store.Get(testURI)
	assert.False(t, ok)
}

func TestCodeAction_FilteredOrUnknown(t *testing.T) {
	t.Parallel()

	srv := NewServer(Options{})

	result, err := srv.codeAction(nil, &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///missing.rs"},
	})
	require.NoError(t, err)
	assert.Empty(t, result)

	srv.store.Set(testURI, "enum A { One(u32) }")

	result, err = srv.codeAction(nil, &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Range:        protocol.Range{Start: protocol.Position{Character: 9}, End: protocol.Position{Character: 9}},
		Context:      protocol.CodeActionContext{Only: []protocol.CodeActionKind{protocol.CodeActionKindQuickFix}},
	})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestInitialize_LoadsWorkspace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("[package]\nname = \"demo\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "conv.rs"),
		[]byte("impl From<u32> for A { fn from(v: u32) -> Self { A::One(v) } }\n"), 0o600))

	var loadedRoot string

	srv := NewServer(Options{
		Loader: func(ctx context.Context, dir string) (Workspace, error) {
			loadedRoot = dir

			return workspace.Load(ctx, workspace.Options{
				Semantic: []semantic.Option{semantic.WithBuiltinCore()},
			}, dir)
		},
	})

	require.ErrorIs(t, srv.Ready(context.Background()), ErrWorkspaceLoading)

	rootURI := "file://" + filepath.ToSlash(root)

	result, err := srv.initialize(nil, &protocol.InitializeParams{RootURI: &rootURI})
	require.NoError(t, err)

	initResult, ok := result.(protocol.InitializeResult)
	require.True(t, ok)
	assert.Equal(t, serverName, initResult.ServerInfo.Name)
	assert.Equal(t, root, loadedRoot)
	require.NotNil(t, srv.workspace())
	require.NoError(t, srv.Ready(context.Background()))

	uri := "file://" + filepath.ToSlash(filepath.Join(src, "lib.rs"))
	srv.store.Set(uri, "enum A { One(u32), Two(String) }\n")

	assert.Empty(t, codeActionAt(t, srv, uri, "One"))
	assert.Len(t, codeActionAt(t, srv, uri, "Two"), 1)
}

func TestReady_WithoutLoader(t *testing.T) {
	t.Parallel()

	srv := NewServer(Options{})

	assert.NoError(t, srv.Ready(context.Background()))
}

func TestReady_WhileLoaderRuns(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})

	srv := NewServer(Options{
		Loader: func(context.Context, string) (Workspace, error) {
			close(started)
			<-release

			return nil, errLoadFailed
		},
	})

	rootURI := "file:///tmp/project"
	done := make(chan error, 1)

	go func() {
		_, err := srv.initialize(nil, &protocol.InitializeParams{RootURI: &rootURI})
		done <- err
	}()

	<-started

	assert.ErrorIs(t, srv.Ready(context.Background()), ErrWorkspaceLoading)

	close(release)
	require.NoError(t, <-done)

	assert.NoError(t, srv.Ready(context.Background()))
	assert.Nil(t, srv.workspace())
}
