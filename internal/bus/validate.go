package bus

import (
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const querySchemaJSON = `{
	"type": "object",
	"required": ["terms", "request-id", "stores", "depth"],
	"properties": {
		"terms": {
			"type": "array",
			"items": { "type": "string", "minLength": 1 }
		},
		"request-id": { "type": "number" },
		"stores": { "type": "number" },
		"depth": { "type": "number" },
		"force-refresh": { "type": "boolean" }
	}
}`

const getProductSchemaJSON = `{
	"type": "object",
	"required": ["store", "url"],
	"properties": {
		"store": { "type": "number" },
		"url": { "type": "string", "minLength": 1 }
	}
}`

var (
	querySchema      = mustCompile(querySchemaJSON)
	getProductSchema = mustCompile(getProductSchemaJSON)
)

func mustCompile(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// ValidateQuery checks an inbound query payload against the fixed schema.
func ValidateQuery(content map[string]any) bool {
	return validate(querySchema, "query", content)
}

// ValidateGetProduct checks an inbound get-product payload.
func ValidateGetProduct(content map[string]any) bool {
	return validate(getProductSchema, "get-product", content)
}

func validate(schema *gojsonschema.Schema, msgType string, content map[string]any) bool {
	result, err := schema.Validate(gojsonschema.NewGoLoader(content))
	if err != nil {
		log.Warn().Err(err).Str("type", msgType).Msg("Message validation errored")
		return false
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			log.Warn().Str("type", msgType).Str("field", desc.Field()).
				Str("problem", desc.Description()).Msg("Invalid message rejected")
		}
		return false
	}
	return true
}
