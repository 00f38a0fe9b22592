package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidSidecar is returned when an encoded sidecar does not match the schema.
var ErrInvalidSidecar = errors.New("invalid sidecar metadata")

const sidecarSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["metadataAttributes"],
	"additionalProperties": false,
	"properties": {
		"metadataAttributes": {
			"type": "object",
			"required": ["title"],
			"minProperties": 2,
			"additionalProperties": {"$ref": "#/$defs/attribute"}
		}
	},
	"$defs": {
		"attribute": {
			"type": "object",
			"required": ["value", "includeForEmbedding"],
			"additionalProperties": false,
			"properties": {
				"includeForEmbedding": {"type": "boolean"},
				"value": {
					"type": "object",
					"required": ["type", "stringValue"],
					"additionalProperties": false,
					"properties": {
						"type": {"const": "STRING"},
						"stringValue": {"type": ["string", "null"]}
					}
				}
			}
		}
	}
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("sidecar.json", strings.NewReader(sidecarSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("sidecar.json")
})

// Validate checks encoded sidecar JSON against the sidecar schema.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile sidecar schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSidecar, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSidecar, err)
	}
	return nil
}
