// Package schema holds the output schema every extraction is instructed to follow.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

//go:embed bill-schema.json
var billSchema string

const resourceName = "bill-schema.json"

// Catalog is immutable once loaded.
type Catalog struct {
	text     string
	compiled *jsonschema.Schema
}

// Load compiles the embedded bill schema.
func Load() (*Catalog, error) {
	return New(billSchema)
}

// New compiles schemaText so a malformed schema fails at startup rather than
// on the first model call.
func New(schemaText string) (*Catalog, error) {
	if strings.TrimSpace(schemaText) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load schema", fmt.Errorf("empty schema"))
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(resourceName, strings.NewReader(schemaText)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Catalog{text: schemaText, compiled: compiled}, nil
}

// Text returns the schema document verbatim.
func (c *Catalog) Text() string {
	return c.text
}

// Validate checks payload against the schema.
func (c *Catalog) Validate(payload string) error {
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return domain.WrapError(domain.ErrInvalidPayload, "decode payload", err)
	}
	if err := c.compiled.Validate(v); err != nil {
		return domain.WrapError(domain.ErrInvalidPayload, "validate payload", err)
	}
	return nil
}
