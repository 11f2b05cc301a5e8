// Package placeholder renders the "{ref.field[key]}" templates used by the
// matcher's element_expressions and the variable engine's tag-add templates
// and ancestor_path level_value strings (spec §4.3, §4.4). A bare {ref}
// resolves the reference's default text; {ref.field} dereferences a named
// field; {ref.field[key]} dereferences a map-valued field by key.
package placeholder

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([^.}\[\]]+)(?:\.([a-zA-Z_]+)(?:\[([^\]]+)\])?)?\}`)

// Resolve looks up one placeholder occurrence, returning the substitution
// text and whether the reference/field/key resolved.
type Resolve func(ref, field, key string) (string, bool)

// Render substitutes every placeholder in tmpl using resolve. It returns ok
// = false (with the template left partially rendered) as soon as any
// placeholder fails to resolve, mirroring the ignore_errors / fatal choice
// callers make around the result.
func Render(tmpl string, resolve Resolve) (string, bool) {
	ok := true
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		if !ok {
			return ""
		}
		sub := placeholderRe.FindStringSubmatch(m)
		ref, field, key := sub[1], sub[2], sub[3]
		v, found := resolve(ref, field, key)
		if !found {
			ok = false
			return ""
		}
		return v
	})
	return out, ok
}
