package entity

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier such as "exp_0190c3...".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HasPrefix reports whether id was generated with the given prefix
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_") && len(id) > len(prefix)+1
}
