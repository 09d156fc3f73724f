package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseValue reads a session value given as JSON on the command line
func parseValue(raw string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("session value must be JSON: %w", err)
	}
	return value, nil
}

// withMaxAge stamps cookie.maxAge (ms) into an object value
func withMaxAge(value any, maxAge time.Duration) (any, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("--max-age needs a JSON object value")
	}
	cookie, ok := obj["cookie"].(map[string]any)
	if !ok {
		cookie = map[string]any{}
		obj["cookie"] = cookie
	}
	cookie["maxAge"] = float64(maxAge.Milliseconds())
	return obj, nil
}
