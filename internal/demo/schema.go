package demo

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var exportInfoSchema = gojsonschema.NewStringLoader(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "Demo export info",
	"type": "object",
	"required": ["export_type"],
	"properties": {
		"export_type": {"type": "string", "minLength": 1},
		"version": {"type": "string"},
		"site_url": {"type": "string"},
		"table_prefix": {"type": "string", "pattern": "^[A-Za-z0-9_]*$"},
		"exported_at": {"type": "string"}
	}
}`)

var importOrderSchema = gojsonschema.NewStringLoader(`{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "Table import order",
	"type": "array",
	"items": {"type": "string", "pattern": "^[A-Za-z0-9_$]+$"}
}`)

// ValidationError lists every schema violation of a package file.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.File, strings.Join(e.Problems, "; "))
}

func validate(schema gojsonschema.JSONLoader, doc []byte, file string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validating %s: %w", file, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{File: file}
	for _, re := range result.Errors() {
		verr.Problems = append(verr.Problems, re.String())
	}
	return verr
}
