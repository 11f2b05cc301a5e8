package queryengine

import (
	"fmt"
	"regexp"
	"sort"
)

type evalEnv struct {
	vars  map[string]any
	funcs map[string]node
}

func (e *evalEnv) child() *evalEnv {
	vars := make(map[string]any, len(e.vars))
	for k, v := range e.vars {
		vars[k] = v
	}
	return &evalEnv{vars: vars, funcs: e.funcs}
}

func evalNode(n node, input any, env *evalEnv) ([]any, error) {
	switch t := n.(type) {
	case identityNode:
		return []any{input}, nil

	case literalNode:
		return []any{t.value}, nil

	case varNode:
		v, ok := env.vars[t.name]
		if !ok {
			return nil, fmt.Errorf("undefined variable $%s", t.name)
		}
		return []any{v}, nil

	case fieldNode:
		bases, err := evalNode(t.base, input, env)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, b := range bases {
			m, ok := b.(map[string]any)
			if !ok {
				out = append(out, nil)
				continue
			}
			out = append(out, m[t.name])
		}
		return out, nil

	case indexNode:
		bases, err := evalNode(t.base, input, env)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, b := range bases {
			arr, ok := b.([]any)
			if !ok {
				out = append(out, nil)
				continue
			}
			idx := t.idx
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				out = append(out, nil)
				continue
			}
			out = append(out, arr[idx])
		}
		return out, nil

	case iterateNode:
		bases, err := evalNode(t.base, input, env)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, b := range bases {
			switch v := b.(type) {
			case []any:
				out = append(out, v...)
			case map[string]any:
				keys := sortedKeys(v)
				for _, k := range keys {
					out = append(out, v[k])
				}
			default:
				return nil, fmt.Errorf("cannot iterate over non-collection value")
			}
		}
		return out, nil

	case recurseNode:
		var out []any
		var walk func(v any)
		walk = func(v any) {
			out = append(out, v)
			switch x := v.(type) {
			case []any:
				for _, e := range x {
					walk(e)
				}
			case map[string]any:
				for _, k := range sortedKeys(x) {
					walk(x[k])
				}
			}
		}
		walk(input)
		return out, nil

	case pipeNode:
		lefts, err := evalNode(t.left, input, env)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, l := range lefts {
			rs, err := evalNode(t.right, l, env)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil

	case bindNode:
		sources, err := evalNode(t.source, input, env)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, s := range sources {
			child := env.child()
			child.vars[t.name] = s
			rs, err := evalNode(t.body, input, child)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil

	case objectNode:
		obj := make(map[string]any, len(t.fields))
		for _, f := range t.fields {
			vs, err := evalNode(f.value, input, env)
			if err != nil {
				return nil, err
			}
			if len(vs) > 0 {
				obj[f.key] = vs[0]
			} else {
				obj[f.key] = nil
			}
		}
		return []any{obj}, nil

	case arrayNode:
		if t.body == nil {
			return []any{[]any{}}, nil
		}
		vs, err := evalNode(t.body, input, env)
		if err != nil {
			return nil, err
		}
		arr := append([]any{}, vs...)
		return []any{arr}, nil

	case callNode:
		return evalCall(t, input, env)

	default:
		return nil, fmt.Errorf("unsupported node type %T", n)
	}
}

func evalCall(c callNode, input any, env *evalEnv) ([]any, error) {
	switch c.name {
	case "select":
		if len(c.args) != 1 {
			return nil, fmt.Errorf("select() takes exactly one argument")
		}
		conds, err := evalNode(c.args[0], input, env)
		if err != nil {
			return nil, err
		}
		for _, cond := range conds {
			if truthy(cond) {
				return []any{input}, nil
			}
		}
		return nil, nil

	case "test":
		if len(c.args) != 1 {
			return nil, fmt.Errorf("test() takes exactly one argument")
		}
		patArgs, err := evalNode(c.args[0], input, env)
		if err != nil {
			return nil, err
		}
		if len(patArgs) == 0 {
			return []any{false}, nil
		}
		pat, ok := patArgs[0].(string)
		if !ok {
			return nil, fmt.Errorf("test() pattern must be a string")
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("test(): %w", err)
		}
		s, ok := input.(string)
		if !ok {
			return []any{false}, nil
		}
		return []any{re.MatchString(s)}, nil

	case "not":
		return []any{!truthy(input)}, nil

	case "empty":
		return nil, nil

	case "length":
		switch v := input.(type) {
		case string:
			return []any{float64(len([]rune(v)))}, nil
		case []any:
			return []any{float64(len(v))}, nil
		case map[string]any:
			return []any{float64(len(v))}, nil
		case nil:
			return []any{float64(0)}, nil
		default:
			return nil, fmt.Errorf("length: unsupported value type %T", v)
		}

	case "keys":
		m, ok := input.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("keys: input is not an object")
		}
		ks := sortedKeys(m)
		out := make([]any, len(ks))
		for i, k := range ks {
			out[i] = k
		}
		return []any{out}, nil

	case "values":
		m, ok := input.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("values: input is not an object")
		}
		ks := sortedKeys(m)
		out := make([]any, len(ks))
		for i, k := range ks {
			out[i] = m[k]
		}
		return []any{out}, nil

	case "map":
		if len(c.args) != 1 {
			return nil, fmt.Errorf("map() takes exactly one argument")
		}
		arr, ok := input.([]any)
		if !ok {
			return nil, fmt.Errorf("map: input is not an array")
		}
		out := make([]any, 0, len(arr))
		for _, el := range arr {
			rs, err := evalNode(c.args[0], el, env)
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return []any{out}, nil

	case "from_entries":
		arr, ok := input.([]any)
		if !ok {
			return nil, fmt.Errorf("from_entries: input is not an array")
		}
		obj := make(map[string]any, len(arr))
		for _, e := range arr {
			entry, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("from_entries: entry is not an object")
			}
			key := firstNonNil(entry, "key", "k", "name")
			val := firstFieldPresent(entry, "value", "v")
			ks, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("from_entries: entry key is not a string")
			}
			obj[ks] = val
		}
		return []any{obj}, nil

	default:
		if body, ok := env.funcs[c.name]; ok && len(c.args) == 0 {
			return evalNode(body, input, env)
		}
		return nil, fmt.Errorf("unknown function %q", c.name)
	}
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func firstNonNil(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func firstFieldPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}
