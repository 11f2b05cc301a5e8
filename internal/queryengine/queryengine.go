// Package queryengine implements the small JQ-like query language the
// extraction stage uses to pull values out of a document's JSON projection
// (spec §4.6, json_query). Nothing in the example corpus depends on gojq or
// itchyny/jq, so this subset — path access, .[] iteration, .. recursive
// descent, pipes, select/test/from_entries, $var bindings and parameter-less
// "def" preambles — is hand-rolled rather than grounded on a library.
package queryengine

import "fmt"

// Program is a parsed, reusable query. Compile it once per distinct query
// string and reuse it across documents.
type Program struct {
	defs []funcDef
	body node
}

// Compile parses a query string, which may start with zero or more
// "def name: body;" preamble declarations followed by the pipeline proper.
func Compile(query string) (*Program, error) {
	defs, body, err := parseProgram(query)
	if err != nil {
		return nil, fmt.Errorf("queryengine: compile %q: %w", query, err)
	}
	return &Program{defs: defs, body: body}, nil
}

// Run evaluates the program against input (typically a document's JSON
// projection, i.e. the map[string]any/[]any/string/float64/bool/nil tree
// produced by doctree.ToJSON), with vars bound as $name references visible
// throughout the pipeline. It returns every value the pipeline's final
// stage produces, in order.
func (p *Program) Run(input any, vars map[string]any) ([]any, error) {
	funcs := make(map[string]node, len(p.defs))
	for _, d := range p.defs {
		funcs[d.name] = d.body
	}
	boundVars := make(map[string]any, len(vars))
	for k, v := range vars {
		boundVars[k] = v
	}
	env := &evalEnv{vars: boundVars, funcs: funcs}
	return evalNode(p.body, input, env)
}

// RunFirst evaluates the program and returns only its first output value,
// which is what most extraction fields want (a single scalar or object
// rather than a stream).
func (p *Program) RunFirst(input any, vars map[string]any) (any, bool, error) {
	out, err := p.Run(input, vars)
	if err != nil {
		return nil, false, err
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out[0], true, nil
}
