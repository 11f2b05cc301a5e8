package transform

import (
	"regexp"
	"strings"
)

var backrefRe = regexp.MustCompile(`\\([1-9])`)

// toGoReplacement converts the spec's "\1".."\9" backreference syntax into
// Go's regexp replacement syntax ("$1").
func toGoReplacement(tmpl string) string {
	return backrefRe.ReplaceAllString(tmpl, "$$$1")
}

func applyCaseOp(s, op string) string {
	switch op {
	case "lower":
		return strings.ToLower(s)
	case "upper":
		return strings.ToUpper(s)
	default:
		return s
	}
}
