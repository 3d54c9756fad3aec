// ABOUTME: Deterministic text rendering of fetched backend structures
// ABOUTME: Sorted key order so identical data always renders identically

package adapter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RenderText renders a decoded JSON value as plain text with stable key
// order. Maps render as "key: value" lines sorted by key, slices as
// numbered entries. The output feeds the context bundle, so identical
// input must always produce identical output.
func RenderText(v any) string {
	var b strings.Builder
	renderValue(&b, v, 0)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderValue(b *strings.Builder, v any, depth int) {
	indent := strings.Repeat("  ", depth)

	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch child := val[k].(type) {
			case map[string]any, []any:
				b.WriteString(indent + k + ":\n")
				renderValue(b, child, depth+1)
			default:
				b.WriteString(indent + k + ": " + renderScalar(child) + "\n")
			}
		}
	case []any:
		for i, item := range val {
			switch child := item.(type) {
			case map[string]any, []any:
				b.WriteString(fmt.Sprintf("%s[%d]\n", indent, i+1))
				renderValue(b, child, depth+1)
			default:
				b.WriteString(fmt.Sprintf("%s[%d] %s\n", indent, i+1, renderScalar(child)))
			}
		}
	default:
		b.WriteString(indent + renderScalar(val) + "\n")
	}
}

// renderScalar formats a JSON leaf value. Numbers print without a
// trailing ".0" when they are integral, matching how the backends
// display them.
func renderScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
