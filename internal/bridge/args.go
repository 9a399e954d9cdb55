package bridge

import (
	"encoding/json"
	"math"
)

// arguments is the argument map of a call
type arguments map[string]any

// requireString returns a required string argument
func (a arguments) requireString(name string) (string, error) {
	s, ok := a[name].(string)
	if !ok {
		return "", missingArgument(name)
	}
	return s, nil
}

// optionalString returns a string argument that may be absent or null
func (a arguments) optionalString(name string) (string, bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, missingArgument(name)
	}
	return s, true, nil
}

// boolOr returns a boolean argument, or def when absent or null
func (a arguments) boolOr(name string, def bool) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, missingArgument(name)
	}
	return b, nil
}

// requireInt returns a required integer argument
func (a arguments) requireInt(name string) (int, error) {
	n, ok, err := a.optionalInt(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, missingArgument(name)
	}
	return n, nil
}

// optionalInt returns an integer argument that may be absent or null.
// JSON numbers are accepted when integral.
func (a arguments) optionalInt(name string) (int, bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, false, nil
	}

	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
			return 0, false, missingArgument(name)
		}
		return int(i), true, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false, missingArgument(name)
		}
		return int(n), true, nil
	case int:
		return n, true, nil
	default:
		return 0, false, missingArgument(name)
	}
}

// has reports whether the key is present, even with a null value
func (a arguments) has(name string) bool {
	_, ok := a[name]
	return ok
}
