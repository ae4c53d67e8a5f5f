package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobSchema = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "id": {"type": "integer"},
    "title": {"type": "string"}
  }
}`

func TestSchemaSet_Validate(t *testing.T) {
	set := NewSchemaSet()
	require.NoError(t, set.Register("job", jobSchema))
	assert.True(t, set.Has("job"))

	tests := []struct {
		name     string
		doc      string
		valid    bool
		badField string
	}{
		{"valid", `{"id": 3, "title": "Engineer"}`, true, ""},
		{"missing title", `{"id": 3}`, false, "(root)"},
		{"wrong type", `{"id": "three", "title": "Engineer"}`, false, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := set.Validate("job", []byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.True(t, res.HasErrors(tt.badField), res.GetErrorMessages())
				assert.Contains(t, res.Error(), "data validation failed")
			}
		})
	}
}

func TestSchemaSet_Errors(t *testing.T) {
	set := NewSchemaSet()

	_, err := set.Validate("unknown", []byte(`{}`))
	assert.Error(t, err)

	assert.Error(t, set.Register("broken", `{"type": 12}`))

	require.NoError(t, set.Register("job", jobSchema))
	_, err = set.Validate("job", []byte(`{not json`))
	assert.Error(t, err)
}
