package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxCount caps absurd counts so the int conversion never overflows.
const maxCount = math.MaxInt32

// clampNonNegNumber turns any decoded JSON value into a finite, non-negative float.
func clampNonNegNumber(v any) float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// clampNonNegInt floors and clamps a count.
func clampNonNegInt(v any) int {
	f := math.Floor(clampNonNegNumber(v))
	if f > maxCount {
		return maxCount
	}
	return int(f)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// asText keeps surrounding whitespace; used for free-form notes and messages.
func asText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return asString(v)
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "y", "on":
			return true
		}
		return false
	default:
		f, ok := toFloat(v)
		return ok && f != 0
	}
}

// boolOr returns def when the key is absent or null.
func boolOr(v any, def bool) bool {
	if v == nil {
		return def
	}
	return asBool(v)
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func coalesce(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// deepCopy clones decoded JSON so migrations never mutate caller input.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}
