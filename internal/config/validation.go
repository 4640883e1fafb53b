package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

// ValidationWarning flags a loaded key that is unknown or deprecated.
type ValidationWarning struct {
	Key         string
	Suggestions []string
}

func (w ValidationWarning) String() string {
	msg := fmt.Sprintf("'%s' is not a known config key", w.Key)
	switch len(w.Suggestions) {
	case 0:
	case 1:
		msg += fmt.Sprintf(". Did you mean '%s'?", w.Suggestions[0])
	default:
		msg += ". Did you mean one of these?\n"
		for _, suggestion := range w.Suggestions {
			msg += fmt.Sprintf("    - %s\n", suggestion)
		}
	}
	return msg
}

// ValidateKeys compares every key loaded into k with the registry.
func ValidateKeys(k *koanf.Koanf) []ValidationWarning {
	var warnings []ValidationWarning

	for _, key := range k.Keys() {
		if info, exists := LookupKey(key); exists {
			if info.Deprecated {
				warnings = append(warnings, ValidationWarning{
					Key:         key,
					Suggestions: []string{info.ReplacedBy},
				})
			}
			continue
		}
		if hasRegisteredPrefix(key) {
			continue
		}
		warnings = append(warnings, ValidationWarning{
			Key:         key,
			Suggestions: FindSimilarKeys(key, 3),
		})
	}

	return warnings
}

// hasRegisteredPrefix accepts keys nested below a registered key.
func hasRegisteredPrefix(key string) bool {
	parts := strings.Split(key, ".")
	for i := len(parts) - 1; i > 0; i-- {
		if _, exists := LookupKey(strings.Join(parts[:i], ".")); exists {
			return true
		}
	}
	return false
}

// FormatValidationWarnings renders warnings as an indented list, or "" when
// there are none.
func FormatValidationWarnings(warnings []ValidationWarning) string {
	if len(warnings) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration warnings detected:\n")
	for _, warning := range warnings {
		lines := strings.Split(warning.String(), "\n")
		for i, line := range lines {
			if line == "" {
				continue
			}
			if i == 0 {
				sb.WriteString(fmt.Sprintf("  - %s\n", line))
			} else {
				sb.WriteString(fmt.Sprintf("    %s\n", line))
			}
		}
	}
	return sb.String()
}
