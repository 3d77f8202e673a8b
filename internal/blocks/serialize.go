package blocks

import (
	"encoding/json"
	"strings"
)

// Serialize renders n back to delimited markup. Freeform nodes render as
// their HTML. The core namespace is omitted from names.
func Serialize(n *Node) string {
	if n.Name == "" {
		return n.InnerHTML
	}
	name := strings.TrimPrefix(n.Name, CoreNamespace)
	attrs := ""
	if len(n.Attrs) > 0 {
		attrs = SerializeAttrs(n.Attrs) + " "
	}
	inner := serializeContent(n)
	if inner == "" {
		return "<!-- wp:" + name + " " + attrs + "/-->"
	}
	return "<!-- wp:" + name + " " + attrs + "-->" + inner + "<!-- /wp:" + name + " -->"
}

// SerializeAll concatenates the serialization of every node.
func SerializeAll(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(Serialize(n))
	}
	return b.String()
}

// SerializeAttrs encodes attributes as JSON that is safe inside an HTML
// comment: "--", quotes inside strings and angle brackets are escaped.
func SerializeAttrs(attrs map[string]any) string {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "{}"
	}
	s := string(raw)
	s = strings.ReplaceAll(s, "--", `\u002d\u002d`)
	s = strings.ReplaceAll(s, `\"`, `\u0022`)
	return s
}

func serializeContent(n *Node) string {
	var b strings.Builder
	if n.InnerContent == nil {
		for _, child := range n.InnerBlocks {
			b.WriteString(Serialize(child))
		}
		b.WriteString(n.InnerHTML)
		return b.String()
	}
	next := 0
	for _, chunk := range n.InnerContent {
		if chunk != nil {
			b.WriteString(*chunk)
			continue
		}
		if next < len(n.InnerBlocks) {
			b.WriteString(Serialize(n.InnerBlocks[next]))
			next++
		}
	}
	return b.String()
}

// RenderHTML returns the markup of nodes with block delimiters removed. It
// is a static preview: dynamic blocks and fragment refs render nothing.
func RenderHTML(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		if n.Name == "" {
			b.WriteString(n.InnerHTML)
			continue
		}
		if n.InnerContent == nil {
			b.WriteString(RenderHTML(n.InnerBlocks))
			b.WriteString(n.InnerHTML)
			continue
		}
		next := 0
		for _, chunk := range n.InnerContent {
			if chunk != nil {
				b.WriteString(*chunk)
				continue
			}
			if next < len(n.InnerBlocks) {
				b.WriteString(RenderHTML(n.InnerBlocks[next : next+1]))
				next++
			}
		}
	}
	return b.String()
}
