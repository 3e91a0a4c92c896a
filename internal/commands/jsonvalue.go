package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// normalizeJSON accepts JSON with comments and trailing commas and returns
// plain JSON.
func normalizeJSON(raw []byte) (json.RawMessage, error) {
	stripped := jsonc.ToJSON(raw)
	if !json.Valid(stripped) {
		return nil, errors.New("not valid JSON")
	}
	return json.RawMessage(stripped), nil
}

// readJSONValue decodes the value given inline or, when file is set, read
// from that file. Exactly one of the two must be set.
func readJSONValue(inline, file string) (any, error) {
	var raw []byte
	switch {
	case inline != "" && file != "":
		return nil, errors.New("use either --value or --value-file, not both")
	case file != "":
		b, err := os.ReadFile(file) //nolint:gosec // G304: path supplied by the operator
		if err != nil {
			return nil, fmt.Errorf("read --value-file: %w", err)
		}
		raw = b
	case inline != "":
		raw = []byte(inline)
	default:
		return nil, errors.New("--value or --value-file is required")
	}

	norm, err := normalizeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("value must be valid JSON: %w", err)
	}
	var v any
	if err := json.Unmarshal(norm, &v); err != nil {
		return nil, fmt.Errorf("value must be valid JSON: %w", err)
	}
	return v, nil
}
