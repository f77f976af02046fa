// Package keywords loads and validates the keyword batch configuration
// that drives collection runs.
package keywords

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed batch.schema.json
var batchSchemaJSON string

// Batch is one validated keyword batch.
type Batch struct {
	ConfigVersion       string   `json:"config_version"`
	Keywords            []string `json:"keywords"`
	MaxItems            int      `json:"max_items,omitempty"`
	PublishedAfterHours int      `json:"published_after_hours,omitempty"`
	Languages           []string `json:"languages,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateBatchPayload validates raw JSON against the embedded schema
// and decodes it. Duplicated keywords (case-insensitive) are a semantic
// error the schema cannot express.
func ValidateBatchPayload(payload json.RawMessage) (*Batch, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode batch JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize batch JSON: %w", err)
	}

	var batch Batch
	if err := json.Unmarshal(normalized, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal batch: %w", err)
	}

	if err := validateSemantics(&batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// LoadFile reads and validates one batch config file.
func LoadFile(path string) (*Batch, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch config %q: %w", path, err)
	}
	batch, err := ValidateBatchPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("batch config %q: %w", path, err)
	}
	return batch, nil
}

func validateSemantics(batch *Batch) error {
	seen := make(map[string]struct{}, len(batch.Keywords))
	for _, kw := range batch.Keywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			return fmt.Errorf("keywords must not be blank")
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate keyword %q", trimmed)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("batch.schema.json", strings.NewReader(batchSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("batch.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})
	return compiledSchema, compiledSchemaErr
}

func decodeStrictJSON(payload json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("JSON contains trailing content")
	}
	return value, nil
}
