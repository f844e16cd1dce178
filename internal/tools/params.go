package tools

import (
	"strconv"
)

// stringParam returns the first non-empty string value found among the given
// keys. Parameter names drifted across prompt iterations ("path" vs
// "file_path"), so tools accept the historical aliases.
func stringParam(params map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if raw, ok := params[key]; ok {
			if s, ok := raw.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// int64Param returns the first value among the given keys convertible to an
// int64. JSON numbers arrive as float64; ids in legacy output arrive as
// strings.
func int64Param(params map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		raw, ok := params[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case int64:
			return v, true
		case int:
			return int64(v), true
		case float64:
			return int64(v), true
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// contentParam reads the 'content' parameter. An explicitly empty string is
// a valid empty file; a present non-string value is a type error, not an
// empty file.
func contentParam(params map[string]any) (string, *Result) {
	raw, present := params["content"]
	if !present || raw == nil {
		res := Errorf("missing required parameter 'content'")
		return "", &res
	}
	s, ok := raw.(string)
	if !ok {
		res := Errorf("parameter 'content' must be a string, got %T", raw)
		return "", &res
	}
	return s, nil
}

// requireString returns an error result when none of the keys holds a string.
func requireString(params map[string]any, name string, keys ...string) (string, *Result) {
	value, ok := stringParam(params, keys...)
	if !ok {
		res := Errorf("missing required parameter '%s'", name)
		return "", &res
	}
	return value, nil
}
