package syntax

import (
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/alexaandru/go-sitter-forest/rust"
)

// LanguageName is the grammar name used in logs and telemetry.
const LanguageName = "rust"

var (
	languageOnce sync.Once
	language     *sitter.Language
)

// Language returns the cached tree-sitter Rust language.
func Language() *sitter.Language {
	languageOnce.Do(func() {
		language = sitter.NewLanguage(rust.GetLanguage())
	})

	return language
}
