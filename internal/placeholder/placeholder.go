// Package placeholder substitutes {{namespace.field}} tokens with values from
// a nested data context.
package placeholder

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// tokenPattern matches a balanced {{ path }}. Paths are dotted identifiers
// with optional numeric segments (items.0.description).
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_\-]*(?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

type options struct {
	defaults map[string]string
	fallback func(path string) (string, bool)
	escape   bool
}

// Option customises how unresolved tokens and values are treated.
type Option func(*options)

// WithDefaults substitutes defaults[path] for tokens whose path is missing.
func WithDefaults(defaults map[string]string) Option {
	return func(o *options) { o.defaults = defaults }
}

// WithFallback is consulted after WithDefaults for missing paths.
func WithFallback(fn func(path string) (string, bool)) Option {
	return func(o *options) { o.fallback = fn }
}

// Escaped HTML-escapes every substituted value. The template text itself is untouched.
func Escaped() Option {
	return func(o *options) { o.escape = true }
}

// Resolve replaces every token in tmpl with the stringified value at its
// dotted path in data. Missing or nil values leave the token literal unless a
// default or fallback supplies one. Malformed tokens are never touched.
func Resolve(tmpl string, data map[string]interface{}, opts ...Option) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return tokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		if v, ok := Lookup(data, path); ok {
			s := Stringify(v)
			if o.escape {
				s = html.EscapeString(s)
			}
			return s
		}
		if d, ok := o.defaults[path]; ok {
			if o.escape {
				return html.EscapeString(d)
			}
			return d
		}
		if o.fallback != nil {
			if d, ok := o.fallback(path); ok {
				if o.escape {
					return html.EscapeString(d)
				}
				return d
			}
		}
		return token
	})
}

// ResolveHTML is Resolve with every substituted value HTML-escaped.
func ResolveHTML(tmpl string, data map[string]interface{}, opts ...Option) string {
	return Resolve(tmpl, data, append(opts, Escaped())...)
}

// Tokens lists the distinct paths referenced by tmpl, in first-seen order.
func Tokens(tmpl string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range tokenPattern.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Lookup walks a dotted path through nested maps and slices. A nil leaf is
// reported as missing.
func Lookup(data map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = data
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		case []map[string]interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Stringify renders a context value the way it should appear in a document.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
