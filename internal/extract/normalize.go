package extract

import (
	"fmt"
	"math"
	"strconv"
)

// maxScalarLen bounds scalar metadata values. Anything longer is assumed to
// be a blob the catalog should not carry as searchable metadata.
const maxScalarLen = 10

// normalizeScalar applies the bounded-scalar rules to a raw value string.
// Infinities are dropped outright. Values whose representation exceeds
// maxScalarLen are dropped. A numeric value equal to its own integer
// truncation is stored as an integer.
func normalizeScalar(raw string) (any, bool) {
	num, err := strconv.ParseFloat(raw, 64)
	if err == nil && math.IsInf(num, 0) {
		return nil, false
	}
	if len(raw) > maxScalarLen {
		return nil, false
	}
	if err != nil {
		return raw, true
	}
	if math.IsNaN(num) {
		return nil, false
	}
	if num == math.Trunc(num) && num >= math.MinInt64 && num <= math.MaxInt64 {
		return int64(num), true
	}
	return num, true
}

// normalizeValue applies the scalar rules to an arbitrary attribute value.
// Whole nested structures are exempt: when a format's natural result is a
// structured tree, the tree passes through untouched.
func normalizeValue(v any) (any, bool) {
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return normalizeScalar(fmt.Sprint(v))
}
