package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/rustassist/pkg/service"
)

// Tool name constants.
const (
	ToolNamePropose = "rustassist_propose"
	ToolNameScan    = "rustassist_scan"
)

// Input size limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
)

// Input types (auto-generate JSON schemas via struct tags).

// ProposeInput is the input schema for the rustassist_propose tool.
type ProposeInput struct {
	Code string `json:"code" jsonschema:"Rust source with a $0 cursor marker inside an enum variant"`
}

// ScanInput is the input schema for the rustassist_scan tool.
type ScanInput struct {
	Code string `json:"code" jsonschema:"Rust source to scan for enum variants"`
}

// ScanOutput is the structured result of the rustassist_scan tool.
type ScanOutput struct {
	Variants   []service.Row `json:"variants"`
	Applicable int           `json:"applicable"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handlePropose(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ProposeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCodeInput(input.Code)
	if err != nil {
		return errorResult(err)
	}

	result, err := s.svc.ProposeInline(ctx, input.Code)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(result)
}

func (s *Server) handleScan(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ScanInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCodeInput(input.Code)
	if err != nil {
		return errorResult(err)
	}

	rows, err := s.svc.ScanInline(ctx, input.Code)
	if err != nil {
		return errorResult(err)
	}

	out := ScanOutput{Variants: rows}
	if out.Variants == nil {
		out.Variants = []service.Row{}
	}

	for _, row := range rows {
		if row.Applicable {
			out.Applicable++
		}
	}

	return jsonResult(out)
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateCodeInput checks common code input constraints.
func validateCodeInput(code string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}
