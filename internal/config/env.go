package config

import (
	"os"
	"regexp"
)

// envVarRegex matches ${NAME} and ${NAME:-fallback}.
var envVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// substituteEnvVars expands variable references. A fallback is used when the
// variable is unset or empty; references without one are left untouched if
// the variable is unset.
func substituteEnvVars(content []byte) []byte {
	return envVarRegex.ReplaceAllFunc(content, func(match []byte) []byte {
		groups := envVarRegex.FindSubmatch(match)
		fallback := groups[2]

		value, exists := os.LookupEnv(string(groups[1]))
		switch {
		case exists && (value != "" || fallback == nil):
			return []byte(value)
		case fallback != nil:
			return fallback
		}
		return match
	})
}
