package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// IndexSeparator separates row indices in a serialized neighbour list.
const IndexSeparator = ";"

// FormatIndices serializes a neighbour list as "3;17;42". Indices are plain non-negative
// decimals so the separator never needs escaping.
func FormatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, IndexSeparator)
}

// ParseIndices reads a neighbour list written by FormatIndices. It also accepts the older
// bracketed form "[3, 17, '42']" found in workbooks produced before the separator was fixed.
// An empty or "[]" value yields an empty list.
func ParseIndices(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	legacy := strings.HasPrefix(s, "[")
	if legacy {
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("unterminated index list %q", s)
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return []int{}, nil
	}
	sep := IndexSeparator
	if legacy || !strings.Contains(s, IndexSeparator) && strings.Contains(s, ",") {
		sep = ","
	}
	fields := strings.Split(s, sep)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if legacy {
			f = strings.Trim(f, `'"`)
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q in %q", f, s)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative index %d in %q", v, s)
		}
		out = append(out, v)
	}
	return out, nil
}
