package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/config/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const configSchemaName = "cygfetch-config.schema.json"

// ValidateAgainstSchema compiles schemaBytes and validates the JSON in data
// with it. name only identifies the schema in errors. A non-empty ref picks
// a subschema ("#/$defs/X", "/$defs/X" or an anchor).
func ValidateAgainstSchema(name string, schemaBytes, data []byte, ref string) error {
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(name, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("loading schema %q: %w", name, err)
	}

	target := name
	switch {
	case ref == "":
	case strings.HasPrefix(ref, "#"):
		target = name + ref
	default:
		target = name + "#" + ref
	}
	sch, err := comp.Compile(target)
	if err != nil {
		return fmt.Errorf("compiling schema %q: %w", name, err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON for %q: %w", name, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %q failed: %w", name, err)
	}
	return nil
}

// ValidateConfigJSON validates a cygfetch config document.
func ValidateConfigJSON(data []byte) error {
	return ValidateAgainstSchema(configSchemaName, schema.ConfigSchema, data, "")
}
