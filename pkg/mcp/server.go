// Package mcp implements a Model Context Protocol server exposing the
// rustassist assists as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/service"
	"github.com/Sumatoshi-tech/rustassist/pkg/version"
)

const (
	serverName = "rustassist"
	opPrefix   = "mcp."
)

// Tool descriptions shown to agents.
const (
	proposeToolDescription = "Offer a `From<T>` impl for the enum variant under the $0 cursor " +
		"in inline Rust code. Multiple files may be given with //- /path crate:name deps:a,b headers. " +
		"Returns the proposal and the patched cursor file, or the reason nothing was offered."

	scanToolDescription = "Report, for every enum variant in inline Rust code, whether a `From<T>` impl " +
		"can be generated for it and why not otherwise."
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Service runs the assists. Nil uses service.New().
	Service *service.Service

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics records per-tool RED metrics. Nil disables them.
	Metrics *observability.REDMetrics

	// Tracer creates a span per tool call. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with rustassist tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	svc     *service.Service
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates a new MCP server with all rustassist tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{Logger: deps.Logger}

	srv := &Server{
		inner:   mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version.Version}, opts),
		svc:     deps.Service,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	if srv.svc == nil {
		srv.svc = service.New(service.WithLogger(deps.Logger))
	}

	if srv.tracer == nil {
		srv.tracer = nooptrace.NewTracerProvider().Tracer(serverName)
	}

	addTool(srv, ToolNamePropose, proposeToolDescription, srv.handlePropose)
	addTool(srv, ToolNameScan, scanToolDescription, srv.handleScan)

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves on stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// addTool registers handler under name, instrumented with a span and RED
// metrics. A sampled call gets a trace_id=... text block appended.
func addTool[In any](
	s *Server, name, description string,
	handler func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error),
) {
	op := opPrefix + name

	instrumented := func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		ctx, span := s.tracer.Start(ctx, op,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", name)),
		)
		defer span.End()

		done := s.metrics.TrackInflight(ctx, op)
		defer done()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError

			span.SetStatus(codes.Error, "tool call failed")
		}

		s.metrics.RecordRequest(ctx, op, status, time.Since(start))

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
		}

		return result, output, err
	}

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description}, instrumented)

	s.tools = append(s.tools, name)
}
