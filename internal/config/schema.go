package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// ErrSchemaViolation indicates the config file does not match the schema.
var ErrSchemaViolation = errors.New("config does not match schema")

// ValidateSchema checks raw settings, as read from the config file, against
// the embedded JSON schema.
func ValidateSchema(settings map[string]any) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	inputLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, inputLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
