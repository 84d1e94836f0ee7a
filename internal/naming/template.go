package naming

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// IDToken is the substitution point in a Template.
const IDToken = "{id}"

// Template is a path pattern parameterized by an identifier. Every
// occurrence of IDToken is replaced by the same identifier.
type Template string

// Expand substitutes id into t.
func (t Template) Expand(id string) string {
	return strings.ReplaceAll(string(t), IDToken, id)
}

// Validate reports an error when t has no IDToken.
func (t Template) Validate() error {
	if !strings.Contains(string(t), IDToken) {
		return errors.Newf("path template %q has no %s token", string(t), IDToken)
	}
	return nil
}

// Templates converts plain strings into templates, preserving order.
func Templates(patterns ...string) []Template {
	out := make([]Template, len(patterns))
	for i, p := range patterns {
		out[i] = Template(p)
	}
	return out
}
