// Package openapi embeds the HTTP API description.
package openapi

import _ "embed"

// Document is the OpenAPI 3 description of the report templates API in YAML.
//
//go:embed openapi.yaml
var Document []byte
