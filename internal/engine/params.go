package engine

import (
	"strconv"
)

// Params are loosely typed source parameters decoded from JSON.
type Params map[string]any

// MergeParams shallow-merges layers; later layers win.
func MergeParams(layers ...Params) Params {
	out := Params{}
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// String returns the parameter as a string. JSON numbers are formatted
// without a trailing fraction.
func (p Params) String(key, def string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return def
	}
}

// Int returns the parameter as an integer. Numeric strings are accepted.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Strings returns the parameter as a list of strings. ok is false when the
// parameter is not a list.
func (p Params) Strings(key string) (values []string, ok bool) {
	switch v := p[key].(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		for _, item := range v {
			switch s := item.(type) {
			case string:
				values = append(values, s)
			case float64:
				values = append(values, strconv.FormatFloat(s, 'f', -1, 64))
			}
		}
		return values, true
	}
	return nil, false
}
