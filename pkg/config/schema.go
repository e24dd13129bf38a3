package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaVersion is bumped whenever a configuration key is added, renamed or
// removed.
const SchemaVersion = "1.0.0"

// Schema returns the JSON schema of the configuration file, for editor
// completion and external validation.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "DittoTasks Configuration"
	schema.Description = "Configuration schema for the dittotasks server and client"
	schema.Version = SchemaVersion

	return json.MarshalIndent(schema, "", "  ")
}
