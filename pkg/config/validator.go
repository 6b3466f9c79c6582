package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
)

// Validate validates a configuration file against the JSON schema.
// Missing credentials or destinations are a fatal startup problem,
// never something an operation-level retry can recover from.
func Validate(configFile string) error {
	abs, err := filepath.Abs(configFile)
	if err != nil {
		return fmt.Errorf("failed to resolve config file path: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(Schema)
	documentLoader := gojsonschema.NewReferenceLoader("file://" + abs)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}

	if !result.Valid() {
		fmt.Fprintf(os.Stderr, "Configuration validation errors:\n")
		for _, desc := range result.Errors() {
			fmt.Fprintf(os.Stderr, "  - %s\n", desc)
		}
		return fmt.Errorf("configuration file is not valid")
	}

	return nil
}
