package tools

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testSchema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"query":       {Type: "string"},
			"max_results": {Type: "integer", Minimum: ptr(1), Maximum: ptr(20)},
			"min_rating":  {Type: "number"},
			"website":     {Type: "string", Enum: []string{"any", "required", "absent"}},
			"verbose":     {Type: "boolean"},
			"tags":        {Type: "array", Items: &Property{Type: "string"}},
			"lead":        {Type: "object"},
		},
		Required: []string{"query"},
	}
}

func TestValidate_Accepts(t *testing.T) {
	inputs := []string{
		`{"query":"plumbers"}`,
		`{"query":"plumbers","max_results":5,"min_rating":4.5,"website":"absent","verbose":true,"tags":["a"],"lead":{"name":"x"}}`,
		`{"query":"plumbers","max_results":5.0}`,
		`{"query":"plumbers","unknown":123}`,
		`{"query":"plumbers","min_rating":null}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.NoError(t, Validate(testSchema(), json.RawMessage(in)))
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing required": `{"location":"Reno"}`,
		"null required":    `{"query":null}`,
		"wrong type":       `{"query":42}`,
		"fractional int":   `{"query":"x","max_results":2.5}`,
		"below minimum":    `{"query":"x","max_results":0}`,
		"above maximum":    `{"query":"x","max_results":50}`,
		"bad enum":         `{"query":"x","website":"maybe"}`,
		"bool as string":   `{"query":"x","verbose":"true"}`,
		"array item type":  `{"query":"x","tags":["a",1]}`,
		"object as array":  `{"query":"x","lead":[]}`,
		"not an object":    `["query"]`,
		"null input":       `null`,
		"malformed":        `{"query":`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			err := Validate(testSchema(), json.RawMessage(in))
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestValidate_EmptyInputIsEmptyObject(t *testing.T) {
	assert.NoError(t, Validate(Schema{Type: "object"}, nil))
	assert.Error(t, Validate(testSchema(), nil))
}

func TestValidate_ErrorNamesField(t *testing.T) {
	err := Validate(testSchema(), json.RawMessage(`{"location":"Reno"}`))
	assert.ErrorContains(t, err, "missing required field: query")
}
