package content

import "github.com/invopop/jsonschema"

// BuildSchema reflects the authoring format into a JSON schema for
// validation and editor tooling. Shared by the schema generator command
// and the gate test.
func BuildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(FileDefinitions))
	schema.Title = "Warbound Content Collections"
	schema.Description = "Validates designer-authored entries in definitions/collections.json"
	return schema
}
