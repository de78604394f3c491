package mcp_test

import (
	"context"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/rustassist/pkg/mcp"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
)

func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, []string{"rustassist_propose", "rustassist_scan"}, toolNames)
}

func TestMCPServer_InMemoryTransport_CallPropose(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Tracer:  tp.Tracer("test"),
		Metrics: red,
	}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "rustassist_propose",
		Arguments: map[string]any{"code": "enum A { $0One(u32) }"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 2)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "impl From<u32> for A {")

	traceText, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, traceText.Text, "trace_id=")

	spanNames := make([]string, 0)
	for _, span := range recorder.Ended() {
		spanNames = append(spanNames, span.Name())
	}

	assert.Contains(t, spanNames, "mcp.rustassist_propose")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "rustassist.requests.total" {
				found = true
			}
		}
	}

	assert.True(t, found)
}

func TestMCPServer_InMemoryTransport_CallScanError(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "rustassist_scan",
		Arguments: map[string]any{"code": "enum A { $0One($0u32) }"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
