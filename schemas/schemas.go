// Package schemas embeds the JSON Schemas for the project config file and
// the persisted model manifest.
package schemas

import _ "embed"

// ConfigSchemaJSON is the schema of .playground.yaml.
//
//go:embed config.schema.json
var ConfigSchemaJSON string

// ModelSchemaJSON is the schema of model.json in a model directory.
//
//go:embed model.schema.json
var ModelSchemaJSON string
