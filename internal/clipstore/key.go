package clipstore

import (
	"fmt"
	"strings"
)

// validateKey rejects keys that could escape a store's namespace. Keys are
// flat: letters, digits, '-', '_' and '.', not starting with '.'.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty clip key")
	}
	if strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid clip key %q", key)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("invalid clip key %q", key)
		}
	}
	return nil
}
