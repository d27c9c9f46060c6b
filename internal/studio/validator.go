package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation can be used with errors.Is to detect parameter validation failures.
var ErrValidation = errors.New("validation failed")

// Generation types a job can produce. The type is read from the request
// parameters and selects which schema the parameters are validated against.
const (
	GenerationTypeImage = "image"
	GenerationTypeVideo = "video"
)

// Validator checks generation parameters against per-type JSON Schemas loaded
// from a schema directory (image.v1.json, video.v1.json, ...).
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator loads and compiles every *.json schema in schemaDir. The file
// name minus extension and version suffix is the generation type it governs.
func NewValidator(schemaDir string) (*Validator, error) {
	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", schemaDir, err)
	}
	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		genType := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		genType = strings.TrimSuffix(genType, ".v1")
		path := filepath.Join(schemaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		id := "https://studiox.app/schemas/" + genType
		schemas[genType], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", genType, err)
		}
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("no schemas found in %q", schemaDir)
	}
	return &Validator{schemas: schemas}, nil
}

// ValidateParameters hard-rejects parameters that do not match the schema for
// their generation type. Types without a schema are rejected.
func (v *Validator) ValidateParameters(genType string, params json.RawMessage) error {
	schema, ok := v.schemas[genType]
	if !ok {
		return fmt.Errorf("%w: unknown generation type %q", ErrValidation, genType)
	}
	var doc interface{}
	if err := json.Unmarshal(params, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
