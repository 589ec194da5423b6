package oauthprovider

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TokenPayload is a decoded token-endpoint response.
type TokenPayload map[string]any

// lookup walks nested objects along path.
func (p TokenPayload) lookup(path ...string) (any, bool) {
	var cur any = map[string]any(p)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string (or number rendered as string) at path, or "".
func (p TokenPayload) String(path ...string) string {
	v, ok := p.lookup(path...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// Bool returns the boolean at path, or false.
func (p TokenPayload) Bool(path ...string) bool {
	v, ok := p.lookup(path...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Seconds returns the duration at path when it holds a number of seconds.
func (p TokenPayload) Seconds(path ...string) *time.Duration {
	v, ok := p.lookup(path...)
	if !ok {
		return nil
	}

	var n int64
	switch val := v.(type) {
	case float64:
		n = int64(val)
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return nil
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}

	d := time.Duration(n) * time.Second
	return &d
}

// FirstString returns the first non-empty string among the given paths.
func (p TokenPayload) FirstString(paths ...[]string) string {
	for _, path := range paths {
		if s := p.String(path...); s != "" {
			return s
		}
	}
	return ""
}
