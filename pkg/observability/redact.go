package observability

import (
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanNamespaces are the attribute namespaces exported with spans. The
// namespace is the key up to its first dot.
var spanNamespaces = map[string]bool{
	"rustassist": true,
	"assist":     true,
	"enum":       true,
	"variant":    true,
	"file":       true,
	"workspace":  true,
	"error":      true,
	"http":       true,
	"lsp":        true,
	"mcp":        true,
}

// sourceKeys carry source text or request payloads and are never exported.
var sourceKeys = map[string]bool{
	"file.content":         true,
	"assist.inserted_text": true,
	"mcp.code":             true,
	"http.request.body":    true,
	"http.response.body":   true,
}

func exportable(key string) bool {
	if sourceKeys[key] {
		return false
	}

	namespace, _, dotted := strings.Cut(key, ".")
	if !dotted {
		return key == "error"
	}

	return spanNamespaces[namespace]
}

// redactingProcessor drops non-exportable attributes from finished spans
// before handing them to the wrapped processor.
type redactingProcessor struct {
	sdktrace.SpanProcessor
}

// NewRedactingProcessor wraps delegate so exported spans keep only
// attributes in the rustassist namespaces, minus keys holding source text.
func NewRedactingProcessor(delegate sdktrace.SpanProcessor) sdktrace.SpanProcessor {
	return redactingProcessor{SpanProcessor: delegate}
}

// OnEnd forwards a redacted view of s.
func (p redactingProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	p.SpanProcessor.OnEnd(redactedSpan{ReadOnlySpan: s})
}

type redactedSpan struct {
	sdktrace.ReadOnlySpan
}

func (s redactedSpan) Attributes() []attribute.KeyValue {
	return slices.DeleteFunc(slices.Clone(s.ReadOnlySpan.Attributes()), func(kv attribute.KeyValue) bool {
		return !exportable(string(kv.Key))
	})
}
