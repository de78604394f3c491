package syntax

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for parser operations.
var (
	errPoolType   = errors.New("unexpected type in parser pool")
	errNoRootNode = errors.New("no root node")
)

// Parser turns Rust source into a lowered File. It is safe for concurrent
// use; tree-sitter parsers are pooled.
type Parser struct {
	pool sync.Pool
}

// NewParser creates a Parser for the Rust grammar.
func NewParser() *Parser {
	lang := Language()

	return &Parser{
		pool: sync.Pool{
			New: func() any {
				tsParser := sitter.NewParser()
				tsParser.SetLanguage(lang)

				return tsParser
			},
		},
	}
}

// Parse parses content and lowers it. Syntax errors do not fail the parse;
// tree-sitter recovers and File.HasErrors is set instead.
func (parser *Parser) Parse(ctx context.Context, path string, content []byte) (*File, error) {
	tsParser, ok := parser.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer parser.pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, fmt.Errorf("parse %s: %w", path, errNoRootNode)
	}

	file := &File{
		Path:      path,
		Source:    string(content),
		HasErrors: root.HasError(),
	}

	lw := &lowerer{src: content, file: file}
	lw.items(root, scope{})

	if lw.err != nil {
		return nil, fmt.Errorf("lower %s: %w", path, lw.err)
	}

	return file, nil
}

// ParseString is a convenience wrapper around Parse for in-memory text.
func (parser *Parser) ParseString(ctx context.Context, path, text string) (*File, error) {
	return parser.Parse(ctx, path, []byte(text))
}
