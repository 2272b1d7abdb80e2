package task

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString     ParamType = "string"
	TypeInt        ParamType = "int"
	TypeBool       ParamType = "bool"
	TypeDuration   ParamType = "duration"
	TypeStringList ParamType = "string_list"
	// TypeIntList accepts lists, comma separated strings and inclusive ranges like "200-399".
	TypeIntList ParamType = "int_list"
)

// Param describes one input accepted by a tool.
type Param struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Params holds resolved, typed parameter values keyed by name.
// Values are string, int, bool, time.Duration, []string or []int.
type Params map[string]any

func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

func (p Params) Int(name string) int {
	v, _ := p[name].(int)
	return v
}

func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

func (p Params) Duration(name string) time.Duration {
	v, _ := p[name].(time.Duration)
	return v
}

func (p Params) StringList(name string) []string {
	v, _ := p[name].([]string)
	return slices.Clone(v)
}

func (p Params) IntList(name string) []int {
	v, _ := p[name].([]int)
	return slices.Clone(v)
}

// Has reports whether name resolved to a value.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// ResolveParams builds Params for schema from layered raw values. Later layers
// override earlier ones; keys not declared in schema are ignored. Defaults apply
// when no layer sets a value. All problems are reported together.
func ResolveParams(schema []Param, layers ...map[string]any) (Params, error) {
	out := make(Params, len(schema))
	var problems []error

	for _, param := range schema {
		raw, ok := lookupLayers(param.Name, layers)
		if !ok || isEmpty(raw) {
			switch {
			case param.Default != nil:
				raw = param.Default
			case param.Required:
				problems = append(problems, fmt.Errorf("%s: required parameter is missing", param.Name))
				continue
			default:
				continue
			}
		}

		value, err := coerce(param.Type, raw)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", param.Name, err))
			continue
		}
		out[param.Name] = value
	}

	if len(problems) > 0 {
		return nil, &ConfigurationError{Subject: "parameters", Err: errors.Join(problems...)}
	}
	return out, nil
}

func lookupLayers(name string, layers []map[string]any) (any, bool) {
	for i := len(layers) - 1; i >= 0; i-- {
		if v, ok := layers[i][name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func isEmpty(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func coerce(typ ParamType, raw any) (any, error) {
	switch typ {
	case TypeString:
		return toString(raw)
	case TypeInt:
		return toInt(raw)
	case TypeBool:
		return toBool(raw)
	case TypeDuration:
		return toDuration(raw)
	case TypeStringList:
		return toStringList(raw)
	case TypeIntList:
		return toIntList(raw)
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", typ)
	}
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Duration:
		return v.String(), nil
	}
	if n, ok := asInt(raw); ok {
		return strconv.Itoa(n), nil
	}
	return "", fmt.Errorf("expected string, got %T", raw)
}

func toInt(raw any) (int, error) {
	if s, ok := raw.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil
	}
	if n, ok := asInt(raw); ok {
		return n, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", raw)
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", v)
		}
		return b, nil
	}
	return false, fmt.Errorf("expected boolean, got %T", raw)
}

// toDuration accepts Go duration strings; bare numbers are seconds.
func toDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return d, nil
	}
	if n, ok := asInt(raw); ok {
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("expected duration, got %T", raw)
}

func toStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return cleanList(v), nil
	case string:
		return cleanList(strings.Split(v, ",")), nil
	}
	items, ok := asSlice(raw)
	if !ok {
		return nil, fmt.Errorf("expected list of strings, got %T", raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := toString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return cleanList(out), nil
}

func toIntList(raw any) ([]int, error) {
	switch v := raw.(type) {
	case []int:
		return slices.Clone(v), nil
	case string:
		return parseIntListString(v)
	}
	if n, ok := asInt(raw); ok {
		return []int{n}, nil
	}
	items, ok := asSlice(raw)
	if !ok {
		return nil, fmt.Errorf("expected list of integers, got %T", raw)
	}
	var out []int
	for _, item := range items {
		if s, ok := item.(string); ok {
			values, err := parseIntListString(s)
			if err != nil {
				return nil, err
			}
			out = append(out, values...)
			continue
		}
		n, err := toInt(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseIntListString(s string) ([]int, error) {
	var out []int
	for _, part := range cleanList(strings.Split(s, ",")) {
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			n, err := toInt(part)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
			continue
		}
		from, err := toInt(lo)
		if err != nil {
			return nil, err
		}
		to, err := toInt(hi)
		if err != nil {
			return nil, err
		}
		if to < from {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		for n := from; n <= to; n++ {
			out = append(out, n)
		}
	}
	return out, nil
}

func asInt(raw any) (int, bool) {
	v := reflect.ValueOf(raw)
	switch {
	case !v.IsValid():
		return 0, false
	case v.CanInt():
		return int(v.Int()), true
	case v.CanUint():
		u := v.Uint()
		if u > math.MaxInt {
			return 0, false
		}
		return int(u), true
	case v.CanFloat():
		f := v.Float()
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func asSlice(raw any) ([]any, bool) {
	v := reflect.ValueOf(raw)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}

// cleanList returns a de-duplicated list of trimmed, non-empty strings.
func cleanList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
