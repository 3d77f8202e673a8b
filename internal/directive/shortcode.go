package directive

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// tagPattern matches [name attrs] and the escaped form [[name attrs]].
// Closing tags and enclosed content are not supported.
var tagPattern = regexp.MustCompile(`\[(\[?)([a-zA-Z0-9_-]+)((?:\s+[^\]]*)?)\](\]?)`)

var attrPattern = regexp.MustCompile(`([a-zA-Z0-9_-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"']+))`)

// ParseAttrs reads name="value", name='value' and name=value pairs. Names
// are lowercased.
func ParseAttrs(s string) Attrs {
	attrs := Attrs{}
	for _, m := range attrPattern.FindAllStringSubmatchIndex(s, -1) {
		key := strings.ToLower(s[m[2]:m[3]])
		for g := 2; g <= 4; g++ {
			if m[2*g] >= 0 {
				attrs[key] = s[m[2*g]:m[2*g+1]]
				break
			}
		}
	}
	return attrs
}

// Expand replaces registered directive tags in text with their rendered
// output. Unknown tags are left as written and [[name]] renders as [name].
func (r *Registry) Expand(ctx context.Context, text string) (string, error) {
	matches := tagPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		name := text[m[4]:m[5]]
		escapedOpen := m[3] > m[2]
		escapedClose := m[9] > m[8]

		d, ok := r.Lookup(name)
		if !ok {
			continue
		}
		b.WriteString(text[last:start])
		last = end

		if escapedOpen && escapedClose {
			b.WriteString(text[start+1 : end-1])
			continue
		}
		out, err := d.Render(ctx, ParseAttrs(text[m[6]:m[7]]))
		if err != nil {
			return "", fmt.Errorf("rendering [%s]: %w", name, err)
		}
		if escapedOpen {
			b.WriteByte('[')
		}
		b.WriteString(out)
		if escapedClose {
			b.WriteByte(']')
		}
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
