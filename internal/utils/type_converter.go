package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// StringToID converts a decimal string to a record id.
// Empty strings, zero and anything non-numeric are rejected.
func StringToID(s string) (uint64, error) {
	val, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if val == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return val, nil
}
