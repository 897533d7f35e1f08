package upstream

import (
	"encoding/json"
	"strings"
)

// Upstream payload field names.
const (
	ResultKey              = "result"
	OpenDateField          = "openDate"
	FormattedOpenDateField = "openDateFormatted"
)

// Product is the upstream result object for one identifier. It is passed through
// untouched except for the derived FormattedOpenDateField.
type Product map[string]any

// NewProduct copies raw and adds the formatted open date.
func NewProduct(raw map[string]any) Product {
	p := make(Product, len(raw)+1)
	for k, v := range raw {
		p[k] = v
	}
	p[FormattedOpenDateField] = FormatOpenDate(raw[OpenDateField])
	return p
}

// FormatOpenDate turns "2024-01-02T03:04:05+09:00" into "2024-01-02 03:04:05".
// Values that are not strings with a time separator are returned as-is, and
// empty values become "".
func FormatOpenDate(v any) any {
	if s, ok := v.(string); ok && strings.Contains(s, "T") {
		s = strings.ReplaceAll(s, "T", " ")
		if i := strings.Index(s, "+"); i >= 0 {
			s = s[:i]
		}
		return s
	}
	if isEmptyValue(v) {
		return ""
	}
	return v
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
