package tablestorage

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Filter is a set of attribute equality predicates joined with "and".
type Filter map[string]any

// String renders the filter as an OData expression. Keys are sorted so the
// output is stable.
func (f Filter) String() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" eq "+literal(f[k]))
	}
	return strings.Join(parts, " and ")
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int32, int, uint8, uint16:
		return fmt.Sprintf("%d", x)
	case int64:
		return fmt.Sprintf("%dL", x)
	case float32, float64:
		return fmt.Sprintf("%v", x)
	case time.Time:
		return "datetime'" + x.UTC().Format(time.RFC3339Nano) + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}
