package filter

import (
	"regexp"
	"strconv"
	"unicode"

	"github.com/csvquery/csvlens/internal/model"
)

// CompilePattern compiles pattern with smartcase: case-insensitive
// unless the pattern itself contains an uppercase code point, in
// which case ignoreCase is forced off regardless of the caller's
// request.
func CompilePattern(pattern string, ignoreCase bool) (*regexp.Regexp, error) {
	effective := ignoreCase && !hasUpper(pattern)
	src := pattern
	if effective {
		src = "(?i)" + pattern
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, &model.BadPattern{Pattern: pattern, Reason: err.Error()}
	}
	return re, nil
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// rowMatches applies re to cells per scope.
func rowMatches(re *regexp.Regexp, scope model.FilterScope, cells []string) bool {
	switch scope.Kind {
	case model.ScopeColumn:
		if scope.Column < 0 || scope.Column >= len(cells) {
			return false
		}
		return re.MatchString(cells[scope.Column])
	case model.ScopeExactCell:
		if scope.Column < 0 || scope.Column >= len(cells) {
			return false
		}
		return cells[scope.Column] == scope.Value
	default: // ScopeAnyColumn
		for _, c := range cells {
			if re.MatchString(c) {
				return true
			}
		}
		return false
	}
}

// MatchColumns applies re against header/synthetic names, returning
// the indices whose name matches, in original order.
func MatchColumns(re *regexp.Regexp, names []string) []int {
	var out []int
	for i, n := range names {
		if re.MatchString(n) {
			out = append(out, i)
		}
	}
	return out
}

// SyntheticNames builds "1","2","3",... headers for --no-headers mode.
func SyntheticNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i + 1)
	}
	return names
}
