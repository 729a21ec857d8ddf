package pipeline

import (
	"strings"

	"github.com/google/uuid"
)

// SanitizeFilename strips directory components and every character
// outside [A-Za-z0-9._-]. Names that sanitize to nothing useful get a
// generated fallback.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		return uuid.NewString() + ".bin"
	}
	return out
}
