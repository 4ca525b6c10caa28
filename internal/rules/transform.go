package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TransformExpr is the small algebraic datatype the transform language
// compiles to: a path-reference into the input, a call to one of the six
// library functions, or a literal value.
type TransformExpr struct {
	Kind    TransformKind    `json:"kind"`
	Path    string           `json:"path,omitempty"`    // Kind == PathRef: dotted path under "input"
	Name    string           `json:"name,omitempty"`    // Kind == Call: function name
	Args    []*TransformExpr `json:"args,omitempty"`    // Kind == Call: argument expressions
	Literal any              `json:"literal,omitempty"` // Kind == Literal
}

// TransformKind discriminates a TransformExpr's variant.
type TransformKind string

const (
	KindPathRef TransformKind = "path"
	KindCall    TransformKind = "call"
	KindLiteral TransformKind = "literal"
)

// TransformDef is a named or inline transform: a mapping of output keys to
// expression trees producing a mapping when evaluated.
type TransformDef struct {
	Fields map[string]*TransformExpr `json:"fields"`
}

// evalEnv is the evaluation environment: "input" bound to the file
// attributes the transform runs against.
type evalEnv struct {
	input map[string]any
}

// Run evaluates a transform definition against attrs, returning the
// resulting mapping. Any runtime error is returned to the caller, who
// should log and skip per the warning-not-error contract.
func (t TransformDef) Run(attrs Attributes) (map[string]any, error) {
	env := evalEnv{input: attrs.ToMap()}
	out := make(map[string]any, len(t.Fields))
	for k, expr := range t.Fields {
		v, err := eval(expr, env)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func eval(e *TransformExpr, env evalEnv) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch e.Kind {
	case KindLiteral:
		return e.Literal, nil
	case KindPathRef:
		return resolvePath(e.Path, env.input), nil
	case KindCall:
		return evalCall(e, env)
	default:
		return nil, fmt.Errorf("unknown expression kind %q", e.Kind)
	}
}

// resolvePath resolves a dotted path like "input.frontmatter.title" against
// env, returning nil when any segment is missing. The leading "input."
// prefix is optional; paths are always relative to the input root.
func resolvePath(path string, input map[string]any) any {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "input.")
	if path == "" || path == "input" {
		return input
	}
	var cur any = input
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func evalCall(e *TransformExpr, env evalEnv) (any, error) {
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		v, err := eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch e.Name {
	case "split":
		s, sep, err := twoStrings(args)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	case "slice":
		return sliceFn(args)
	case "join":
		return joinFn(args)
	case "toLowerCase":
		if len(args) != 1 {
			return nil, fmt.Errorf("toLowerCase: expected 1 arg, got %d", len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("toLowerCase: argument not a string")
		}
		return strings.ToLower(s), nil
	case "replace":
		if len(args) != 3 {
			return nil, fmt.Errorf("replace: expected 3 args, got %d", len(args))
		}
		s, ok1 := args[0].(string)
		search, ok2 := args[1].(string)
		repl, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("replace: arguments must be strings")
		}
		return strings.ReplaceAll(s, search, repl), nil
	case "get":
		return getFn(args)
	default:
		return nil, fmt.Errorf("unknown function %q", e.Name)
	}
}

func twoStrings(args []any) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("expected 2 args, got %d", len(args))
	}
	a, ok1 := args[0].(string)
	b, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("arguments must be strings")
	}
	return a, b, nil
}

func sliceFn(args []any) (any, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("slice: expected 2 or 3 args, got %d", len(args))
	}
	arr, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("slice: first argument must be an array")
	}
	start, err := toInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("slice: start: %w", err)
	}
	end := len(arr)
	if len(args) == 3 {
		end, err = toInt(args[2])
		if err != nil {
			return nil, fmt.Errorf("slice: end: %w", err)
		}
	}
	start = clamp(start, 0, len(arr))
	end = clamp(end, 0, len(arr))
	if end < start {
		end = start
	}
	return append([]any{}, arr[start:end]...), nil
}

func joinFn(args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("join: expected 2 args, got %d", len(args))
	}
	arr, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("join: first argument must be an array")
	}
	sep, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("join: separator must be a string")
	}
	parts := make([]string, len(arr))
	for i, v := range arr {
		parts[i] = toStringForJoin(v)
	}
	return strings.Join(parts, sep), nil
}

func getFn(args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("get: expected 2 args, got %d", len(args))
	}
	obj, ok := args[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	path, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("get: path must be a string")
	}
	return resolvePath(path, obj), nil
}

func toStringForJoin(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
