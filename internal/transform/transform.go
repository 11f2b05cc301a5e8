// Package transform implements the declared rewrite operators that run
// over a document tree between parsing and extraction: dropping elements,
// merging adjacent siblings, nesting bullets and sections, regex-driven
// text mutation, splitting, stripping annotations and computing/applying
// tags. Each pass takes the previous pass's output tree and produces the
// next; mutation is in place, mirroring the "snapshot per pass" rule in
// spec form (an element added or removed mid-pass is not revisited by the
// same pass, since the driving traversal is collected up front).
package transform

import (
	"fmt"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/variables"
)

// PassError reports a pass that could not complete — a bad regex, an
// unresolved required variable, a config field of the wrong shape.
type PassError struct {
	Pass string
	Msg  string
}

func (e *PassError) Error() string { return fmt.Sprintf("%s: %s", e.Pass, e.Msg) }

// Env carries the resources shared by every pass in a pipeline run: the
// regex cache (spec §5: "regexes are compiled once and cached per pass")
// and the variable engine's own caches.
type Env struct {
	Cache     *matcher.Cache
	Variables *variables.Env
}

// NewEnv constructs an Env with fresh caches.
func NewEnv() *Env {
	return &Env{Cache: matcher.NewCache(), Variables: variables.NewEnv()}
}

func matcherEnvFor(doc *doctree.Document, env *Env) *matcher.Env {
	return &matcher.Env{Cache: env.Cache, StyleRules: doc.SharedData.StyleRules}
}

// Pass is one configured transformation step, bound from configuration by
// internal/config and applied in sequence by internal/pipeline.
type Pass interface {
	Apply(env *Env, doc *doctree.Document) error
}
