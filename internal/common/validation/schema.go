package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SchemaSet holds compiled JSON schemas addressed by name.
type SchemaSet struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

func NewSchemaSet() *SchemaSet {
	return &SchemaSet{schemas: make(map[string]*gojsonschema.Schema)}
}

// Register compiles schemaJSON and stores it under name, replacing any previous schema.
func (s *SchemaSet) Register(name, schemaJSON string) error {
	schema, err := Compile(schemaJSON)
	if err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	s.mu.Lock()
	s.schemas[name] = schema
	s.mu.Unlock()
	return nil
}

// Has reports whether a schema is registered under name.
func (s *SchemaSet) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.schemas[name]
	return ok
}

// Validate checks document against the named schema. An error is returned when
// the schema is unknown or the document is not JSON; schema violations are
// reported in the result.
func (s *SchemaSet) Validate(name string, document []byte) (*ValidationResult, error) {
	s.mu.RLock()
	schema, ok := s.schemas[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no schema registered for %s", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

// Compile parses and compiles a JSON schema document.
func Compile(schemaJSON string) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
}

func toResult(r *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: r.Valid()}
	for _, desc := range r.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// Error joins the messages so a failed result can be wrapped as an error.
func (vr *ValidationResult) Error() string {
	return "data validation failed: " + strings.Join(vr.GetErrorMessages(), "; ")
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
