package extract

import (
	"encoding/json"
	"fmt"
	"os"
)

// extractJSON uses the file's own content as its metadata. JSON documents are
// structured trees, so the scalar truncation rule does not apply.
func extractJSON(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	// Non-object documents still need to land in a mapping.
	return Mapping{"content": v}, nil
}
