package report

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of the provider's result: an array of
// ClassifiedSheet records.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	item := reflector.Reflect(&ClassifiedSheet{})
	item.Version = ""
	item.Title = "ClassifiedSheet"
	item.Description = "Per-sheet layout statistics returned by classify_excel_sheets_c"

	schema := &jsonschema.Schema{
		Version: jsonschema.Version,
		Type:    "array",
		Items:   item,
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
