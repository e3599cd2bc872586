package adapters

import (
	"strconv"
	"strings"
)

// ResolvePath navigates a dot-delimited path through decoded JSON. Numeric
// segments index into arrays. Returns nil when any segment is missing, out of
// range, or applied to a scalar. An empty path returns the value unchanged.
func ResolvePath(value interface{}, path string) interface{} {
	if path == "" {
		return value
	}

	current := value
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return nil
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}
