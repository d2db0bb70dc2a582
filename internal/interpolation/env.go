// Package interpolation expands ${NAME} and ${NAME:default} references in strings. The same
// syntax is used for environment variables in the service configuration file and for
// manifest variables and facts during catalog evaluation; only the lookup differs.
package interpolation

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// ErrUndefined is returned, joined once per missing name, when a reference has no value and
// no default.
var ErrUndefined = errors.New("variable not defined")

// Pattern for ${NAME} and ${NAME:default}, the colon is captured to tell ${NAME:} from ${NAME}
var referencePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:)?([^}]*)\}`)

// LookupFunc resolves a name to a value.
type LookupFunc func(name string) (string, bool)

// Expand replaces every reference in input using lookup. A reference without a value uses its
// default when one is given (an empty default is allowed), otherwise it is left in place and
// reported in the returned error.
func Expand(input string, lookup LookupFunc) (string, error) {
	if input == "" {
		return "", nil
	}

	var missing []error
	result := referencePattern.ReplaceAllStringFunc(input, func(match string) string {
		// [full_match, name, colon, default]
		sub := referencePattern.FindStringSubmatch(match)

		if value, ok := lookup(sub[1]); ok {
			return value
		}
		if sub[2] == ":" {
			return sub[3]
		}
		missing = append(missing, fmt.Errorf("%w: %s", ErrUndefined, sub[1]))
		return match
	})

	return result, errors.Join(missing...)
}

// References returns the names referenced by input, in order of appearance.
func References(input string) []string {
	var names []string
	for _, sub := range referencePattern.FindAllStringSubmatch(input, -1) {
		names = append(names, sub[1])
	}
	return names
}

// ExpandEnvVars expands references against the process environment:
//
// ${CATALOGD_HOME:/etc/catalogd}/site.toml
func ExpandEnvVars(input string) (string, error) {
	return Expand(input, os.LookupEnv)
}
