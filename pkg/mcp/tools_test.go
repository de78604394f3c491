package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rustassist/pkg/assist"
	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/service"
)

func newTestServer() *Server {
	return NewServer(ServerDeps{
		Service: service.New(service.WithSemanticOptions(semantic.WithBuiltinCore())),
	})
}

func resultText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestHandlePropose_Applicable(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	result, output, err := srv.handlePropose(context.Background(), &mcpsdk.CallToolRequest{},
		ProposeInput{Code: "enum Msg { $0Text(String), Quit }"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	inline, ok := output.Data.(*service.InlineResult)
	require.True(t, ok)
	require.NotNil(t, inline.Proposal)
	assert.Equal(t, assist.ReasonApplicable, inline.Reason)
	assert.Contains(t, inline.Patched, "impl From<String> for Msg {")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	assert.Equal(t, "applicable", decoded["reason"])
}

func TestHandlePropose_NotApplicable(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	result, _, err := srv.handlePropose(context.Background(), &mcpsdk.CallToolRequest{},
		ProposeInput{Code: "enum Msg { Text(String), $0Quit }"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"reason": "unit_variant"`)
	assert.NotContains(t, resultText(t, result), "proposal")
}

func TestHandlePropose_InvalidInput(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	tests := []struct {
		name string
		code string
		want string
	}{
		{"empty", "", ErrEmptyCode.Error()},
		{"too large", strings.Repeat("a", MaxCodeInputBytes+1), "exceeds maximum size"},
		{"no cursor", "enum A { One(u32) }", "cursor marker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, _, err := srv.handlePropose(context.Background(), &mcpsdk.CallToolRequest{}, ProposeInput{Code: tt.code})
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleScan(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	result, output, err := srv.handleScan(context.Background(), &mcpsdk.CallToolRequest{}, ScanInput{Code: `
enum Shape {
    Circle(f64),
    Rect { w: f64, h: f64 },
    Empty,
}
`})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	scan, ok := output.Data.(ScanOutput)
	require.True(t, ok)
	require.Len(t, scan.Variants, 3)
	assert.Equal(t, 1, scan.Applicable)
	assert.Equal(t, assist.ReasonFieldCount, scan.Variants[1].Reason)
}

func TestHandleScan_NoEnums(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	result, _, err := srv.handleScan(context.Background(), &mcpsdk.CallToolRequest{}, ScanInput{Code: "fn main() {}"})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"variants": []`)
}

func TestListToolNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{ToolNamePropose, ToolNameScan}, newTestServer().ListToolNames())
}
