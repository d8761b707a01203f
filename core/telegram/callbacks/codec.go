package callbacks

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Params carries typed action parameters keyed by schema name.
// Decoded ids are always int64 and enum values are strings.
type Params map[string]any

// Action is a decoded callback token.
type Action struct {
	Type   Type
	Params Params
}

// ID returns an integer parameter, or 0 when absent.
func (a Action) ID(name string) int64 {
	v, _ := a.Params[name].(int64)
	return v
}

// Str returns a string parameter, or "" when absent.
func (a Action) Str(name string) string {
	v, _ := a.Params[name].(string)
	return v
}

// ValidationError reports invalid input to Write.
type ValidationError struct {
	Type   Type
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("callbacks: %s: param %q: %s", e.Type, e.Param, e.Reason)
	}
	return fmt.Sprintf("callbacks: %s: %s", e.Type, e.Reason)
}

// Code is picked up by the handler summary logs.
func (e *ValidationError) Code() string { return "VALIDATION_ERROR" }

// Write encodes an action into its callback token.
func Write(t Type, p Params) (string, error) {
	e, ok := byType[t]
	if !ok {
		return "", &ValidationError{Type: t, Reason: "unknown action type"}
	}
	if e.static() {
		if len(p) > 0 {
			return "", &ValidationError{Type: t, Reason: "static action takes no params"}
		}
		return e.template, nil
	}

	known := make(map[string]struct{}, len(e.params))
	for _, prm := range e.params {
		known[prm.name] = struct{}{}
	}
	extra := make([]string, 0)
	for name := range p {
		if _, ok := known[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return "", &ValidationError{Type: t, Param: extra[0], Reason: "not in schema"}
	}

	var b strings.Builder
	for _, seg := range e.segments {
		if seg.param == nil {
			b.WriteString(seg.literal)
			continue
		}
		raw, present := p[seg.param.name]
		if !present {
			return "", &ValidationError{Type: t, Param: seg.param.name, Reason: "missing"}
		}
		s, err := formatParam(*seg.param, raw)
		if err != nil {
			return "", &ValidationError{Type: t, Param: seg.param.name, Reason: err.Error()}
		}
		b.WriteString(s)
	}

	token := b.String()
	if len(token) > MaxTokenLen {
		return "", &ValidationError{Type: t, Reason: fmt.Sprintf("token is %d bytes, limit %d", len(token), MaxTokenLen)}
	}
	return token, nil
}

// Read decodes an untrusted callback token. It reports false for anything
// that does not match a registered shape.
func Read(token string) (Action, bool) {
	if token == "" || len(token) > MaxTokenLen {
		return Action{}, false
	}
	for _, e := range table {
		if e.static() {
			if token == e.template {
				return Action{Type: e.typ, Params: Params{}}, true
			}
			continue
		}
		m := e.re.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		params := make(Params, len(e.params))
		for i, prm := range e.params {
			group := m[i+1]
			switch prm.kind {
			case paramInt:
				n, err := strconv.ParseInt(group, 10, 64)
				if err != nil {
					return Action{}, false
				}
				params[prm.name] = n
			default:
				params[prm.name] = group
			}
		}
		return Action{Type: e.typ, Params: params}, true
	}
	return Action{}, false
}

func formatParam(p param, v any) (string, error) {
	switch p.kind {
	case paramEnum:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", v)
		}
		for _, allowed := range p.values {
			if s == allowed {
				return s, nil
			}
		}
		return "", fmt.Errorf("value %q not one of %s", s, strings.Join(p.values, "|"))
	default:
		n, ok := toInt64(v)
		if !ok {
			return "", fmt.Errorf("expected integer, got %T", v)
		}
		if n < 0 {
			return "", fmt.Errorf("negative id %d", n)
		}
		return strconv.FormatInt(n, 10), nil
	}
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}
