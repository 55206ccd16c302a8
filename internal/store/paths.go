package store

import (
	"path/filepath"
	"strings"
)

// pathSeparator is the component boundary used by RemovePath,
// RemoveEntriesUnderRoot, the depth filter, and the ignore-pattern
// component rule. Using filepath.Separator (rather than
// a hardcoded '/') keeps the boundary correct on the host OS.
const pathSeparator = filepath.Separator

// escapeLike escapes SQL LIKE metacharacters in s so it can be used as
// a literal prefix with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
