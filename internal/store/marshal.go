package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalArgs encodes a fact's arguments as a JSON array. The encoding is
// the fact's key in the facts table, so it must be deterministic: HTML
// escaping is off and no trailing newline is kept.
func marshalArgs(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalArgs decodes an args_key column.
func unmarshalArgs(data string) ([]string, error) {
	var args []string
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
