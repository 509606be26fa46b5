// Twine filters list names with glob patterns for the KEYS command; the following module implements glob matching.

package scan

import (
	"iter"

	"v.io/v23/glob"
)

// MatchGlob filters the `names` stream with the given `pattern`. An invalid pattern matches nothing.
func MatchGlob(pattern string, names iter.Seq[string]) iter.Seq[string] {
	parsedPattern, err := glob.Parse(pattern)
	if err != nil {
		return func(yield func(string) bool) {}
	}
	return func(yield func(string) bool) {
		for name := range names {
			if parsedPattern.Head().Match(name) {
				if !yield(name) {
					return
				}
			}
		}
	}
}
