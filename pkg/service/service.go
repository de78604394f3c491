// Package service runs assists on behalf of the hosts with tracing,
// logging and outcome metrics around the pure assist core.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/rustassist/pkg/assist"
	"github.com/Sumatoshi-tech/rustassist/pkg/fixture"
	"github.com/Sumatoshi-tech/rustassist/pkg/observability"
	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
	"github.com/Sumatoshi-tech/rustassist/pkg/textedit"
)

const tracerName = "rustassist/service"

// ErrNoCursor indicates inline code without a $0 marker.
var ErrNoCursor = errors.New("code has no " + fixture.Marker + " cursor marker")

// Service wraps the assist with host concerns. The zero value is not
// usable; construct with New.
type Service struct {
	parser   *syntax.Parser
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.AssistMetrics
	semantic []semantic.Option
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTracer sets the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// WithMetrics sets the outcome metrics.
func WithMetrics(metrics *observability.AssistMetrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithParser sets the parser used for inline code.
func WithParser(parser *syntax.Parser) Option {
	return func(s *Service) { s.parser = parser }
}

// WithSemanticOptions sets database options used for inline code.
func WithSemanticOptions(opts ...semantic.Option) Option {
	return func(s *Service) { s.semantic = opts }
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = observability.Component(s.logger, "service")

	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	if s.parser == nil {
		s.parser = syntax.NewParser()
	}

	return s
}

// Parser returns the parser used for inline code.
func (s *Service) Parser() *syntax.Parser {
	return s.parser
}

// Propose evaluates the assist at offset. The reason explains a nil proposal.
func (s *Service) Propose(
	ctx context.Context, sem semantic.Semantics, file *syntax.File, offset int,
) (*assist.Proposal, assist.Reason) {
	ctx, span := s.tracer.Start(ctx, "rustassist.assist.propose", trace.WithAttributes(
		attribute.String("file.path", file.Path),
		attribute.Int("assist.offset", offset),
	))
	defer span.End()

	proposal, reason := assist.Evaluate(file, offset, sem)

	span.SetAttributes(attribute.String("assist.reason", string(reason)))
	s.metrics.RecordEvaluation(ctx, assist.ID, string(reason))

	if proposal == nil {
		s.logger.DebugContext(ctx, "assist not applicable",
			"file.path", file.Path, "assist.offset", offset, "assist.reason", string(reason))
	}

	return proposal, reason
}

// Row is the outcome for one variant of a scanned file.
type Row struct {
	File       string            `json:"file"       yaml:"file"`
	Enum       string            `json:"enum"       yaml:"enum"`
	Variant    string            `json:"variant"    yaml:"variant"`
	Range      syntax.TextRange  `json:"range"      yaml:"range"`
	Position   textedit.Position `json:"position"   yaml:"position"`
	Applicable bool              `json:"applicable" yaml:"applicable"`
	Reason     assist.Reason     `json:"reason"     yaml:"reason"`

	Proposal *assist.Proposal `json:"-" yaml:"-"`
}

// Scan evaluates the assist on every variant of file, in source order.
func (s *Service) Scan(ctx context.Context, sem semantic.Semantics, file *syntax.File) []Row {
	ctx, span := s.tracer.Start(ctx, "rustassist.scan", trace.WithAttributes(
		attribute.String("file.path", file.Path),
	))
	defer span.End()

	variants := file.Variants()
	rows := make([]Row, 0, len(variants))
	applicable := 0

	for _, variant := range variants {
		row := s.scanVariant(ctx, sem, file, variant)
		if row.Applicable {
			applicable++
		}

		rows = append(rows, row)
	}

	span.SetAttributes(
		attribute.Int("variant.count", len(rows)),
		attribute.Int("variant.applicable", applicable),
	)

	return rows
}

func (s *Service) scanVariant(ctx context.Context, sem semantic.Semantics, file *syntax.File, variant *syntax.Variant) Row {
	ctx, span := s.tracer.Start(ctx, observability.SpanScanVariant, trace.WithAttributes(
		attribute.String("variant.name", variant.Name),
	))
	defer span.End()

	proposal, reason := assist.EvaluateVariant(variant, sem)
	s.metrics.RecordEvaluation(ctx, assist.ID, string(reason))

	row := Row{
		File:       file.Path,
		Variant:    variant.Name,
		Range:      variant.Range,
		Position:   textedit.PositionOf(file.Source, variant.Range.Start),
		Applicable: proposal != nil,
		Reason:     reason,
		Proposal:   proposal,
	}

	if enum := variant.Enum(); enum != nil {
		row.Enum = enum.Name
	}

	return row
}

// InlineResult is the outcome of running the assist on inline code.
type InlineResult struct {
	File     string           `json:"file"               yaml:"file"`
	Reason   assist.Reason    `json:"reason"             yaml:"reason"`
	Proposal *assist.Proposal `json:"proposal,omitempty" yaml:"proposal,omitempty"`
	Patched  string           `json:"patched,omitempty"  yaml:"patched,omitempty"`
}

// ProposeInline parses fixture text (one file, or several behind
// "//- /path crate:name deps:a,b" headers) and evaluates the assist at its
// $0 marker. Patched holds the cursor file with the proposal applied.
func (s *Service) ProposeInline(ctx context.Context, code string) (*InlineResult, error) {
	fx, err := fixture.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	if !fx.HasCursor() {
		return nil, ErrNoCursor
	}

	db, file, offset, err := fx.Load(ctx, s.parser, s.semantic...)
	if err != nil {
		return nil, err
	}

	proposal, reason := s.Propose(ctx, db, file, offset)

	result := &InlineResult{File: file.Path, Reason: reason, Proposal: proposal}

	if proposal != nil {
		patched, applyErr := textedit.Apply(file.Source, proposal.Edit())
		if applyErr != nil {
			return nil, fmt.Errorf("apply proposal: %w", applyErr)
		}

		result.Patched = patched
	}

	return result, nil
}

// ScanInline parses fixture text and scans every file in it.
func (s *Service) ScanInline(ctx context.Context, code string) ([]Row, error) {
	fx, err := fixture.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	db, _, _, err := fx.Load(ctx, s.parser, s.semantic...)
	if err != nil {
		return nil, err
	}

	var rows []Row

	for _, unit := range db.Units() {
		for _, file := range unit.Files {
			rows = append(rows, s.Scan(ctx, db, file)...)
		}
	}

	return rows, nil
}
