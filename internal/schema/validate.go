package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed data/server.schema.json
var serverSchemaJSON []byte

// ValidateDocument checks a raw registry server document against the
// embedded server schema before it is decoded into a ServerDetail.
// It returns a single error aggregating all schema violations.
func ValidateDocument(doc []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(serverSchemaJSON)
	docLoader := gojsonschema.NewBytesLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("failed to validate server document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}

	return fmt.Errorf("invalid server document: %s", strings.Join(msgs, "; "))
}
