// Package blocks parses serialized block markup into trees, serializes trees
// back to markup, and walks them to inventory block types.
//
// Block delimiters are HTML comments:
//
//	<!-- wp:namespace/name {"attr":"value"} -->inner<!-- /wp:namespace/name -->
//	<!-- wp:name {"attr":"value"} /-->
//
// A name without a namespace belongs to "core/". Text outside any delimiter
// becomes a freeform node with an empty Name.
package blocks

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// CoreNamespace is implied for block names without a namespace.
const CoreNamespace = "core/"

// Node is one block in a parsed tree.
type Node struct {
	Name        string
	Attrs       map[string]any
	InnerBlocks []*Node
	InnerHTML   string
	// InnerContent interleaves HTML chunks with inner block positions; a nil
	// entry stands for the next inner block. It is nil for nodes built in
	// code, in which case inner blocks serialize before InnerHTML.
	InnerContent []*string
}

type tokenKind int

const (
	tokenOpen tokenKind = iota
	tokenClose
	tokenVoid
)

type token struct {
	kind  tokenKind
	name  string
	attrs map[string]any
	start int
	end   int
}

var delimiterStart = regexp.MustCompile(`<!--\s+(/)?wp:([a-z][a-z0-9_-]*/)?([a-z][a-z0-9_-]*)\s+`)

// nextToken finds the first well-formed block delimiter at or after offset.
func nextToken(doc string, offset int) (token, bool) {
	for offset < len(doc) {
		loc := delimiterStart.FindStringSubmatchIndex(doc[offset:])
		if loc == nil {
			return token{}, false
		}
		start := offset + loc[0]
		p := offset + loc[1]
		closer := loc[2] >= 0
		name := ""
		if loc[4] >= 0 {
			name = doc[offset+loc[4] : offset+loc[5]]
		} else {
			name = CoreNamespace
		}
		name += doc[offset+loc[6] : offset+loc[7]]

		var rawAttrs string
		if p < len(doc) && doc[p] == '{' {
			attrEnd, after, ok := scanAttrs(doc, p)
			if !ok {
				offset = start + 4
				continue
			}
			rawAttrs = doc[p:attrEnd]
			p = after
		}

		void := false
		if strings.HasPrefix(doc[p:], "/") {
			void = true
			p++
		}
		if !strings.HasPrefix(doc[p:], "-->") {
			offset = start + 4
			continue
		}
		p += 3

		t := token{name: name, start: start, end: p, attrs: decodeAttrs(rawAttrs)}
		switch {
		case closer:
			t.kind = tokenClose
		case void:
			t.kind = tokenVoid
		default:
			t.kind = tokenOpen
		}
		return t, true
	}
	return token{}, false
}

// scanAttrs finds the end of a JSON attribute object starting at p: the
// first '}' followed by whitespace and an optional '/' before "-->". It
// returns the index just past '}' and the index of the optional '/' or
// "-->".
func scanAttrs(doc string, p int) (attrEnd, after int, ok bool) {
	for i := p; i < len(doc); i++ {
		if doc[i] != '}' {
			continue
		}
		j := i + 1
		ws := j
		for j < len(doc) && isSpace(doc[j]) {
			j++
		}
		if j == ws {
			continue
		}
		k := j
		if k < len(doc) && doc[k] == '/' {
			k++
		}
		if strings.HasPrefix(doc[k:], "-->") {
			return i + 1, j, true
		}
	}
	return 0, 0, false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// decodeAttrs decodes a JSON attribute object. Malformed JSON yields empty
// attributes rather than failing the whole document.
func decodeAttrs(raw string) map[string]any {
	attrs := map[string]any{}
	if raw == "" {
		return attrs
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return map[string]any{}
	}
	return attrs
}

type frame struct {
	node        *Node
	leadingFrom int
	leadingTo   int
	prevOffset  int
}

type parser struct {
	doc    string
	offset int
	output []*Node
	stack  []*frame
}

// Parse turns serialized markup into a list of top-level nodes. It never
// fails: unknown or malformed delimiters are treated as plain HTML and
// unclosed blocks are closed at the end of the document.
func Parse(doc string) []*Node {
	p := &parser{doc: doc}
	for p.step() {
	}
	return p.output
}

func (p *parser) step() bool {
	t, found := nextToken(p.doc, p.offset)
	if !found {
		p.finish()
		return false
	}
	leadingFrom, leadingTo := p.offset, t.start

	switch t.kind {
	case tokenVoid:
		n := &Node{Name: t.name, Attrs: t.attrs}
		if len(p.stack) == 0 {
			p.addFreeform(p.doc[leadingFrom:leadingTo])
			p.output = append(p.output, n)
		} else {
			p.addInner(n, t.start, t.end)
		}
		p.offset = t.end

	case tokenOpen:
		p.stack = append(p.stack, &frame{
			node:        &Node{Name: t.name, Attrs: t.attrs},
			leadingFrom: leadingFrom,
			leadingTo:   leadingTo,
			prevOffset:  t.end,
		})
		p.offset = t.end

	case tokenClose:
		if len(p.stack) == 0 {
			// A closer without an opener: the rest is plain HTML.
			p.addFreeform(p.doc[p.offset:])
			p.offset = len(p.doc)
			return false
		}
		top := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		appendHTML(top.node, p.doc[top.prevOffset:t.start])
		if len(p.stack) == 0 {
			p.addFreeform(p.doc[top.leadingFrom:top.leadingTo])
			p.output = append(p.output, top.node)
		} else {
			p.addInner(top.node, top.leadingTo, t.end)
		}
		p.offset = t.end
	}
	return true
}

// addInner attaches n to the innermost open block. The HTML between the
// parent's previous position and htmlEnd belongs to the parent, and the
// parent resumes collecting HTML at resume.
func (p *parser) addInner(n *Node, htmlEnd, resume int) {
	parent := p.stack[len(p.stack)-1]
	appendHTML(parent.node, p.doc[parent.prevOffset:htmlEnd])
	parent.node.InnerBlocks = append(parent.node.InnerBlocks, n)
	parent.node.InnerContent = append(parent.node.InnerContent, nil)
	parent.prevOffset = resume
}

func (p *parser) finish() {
	rest := p.doc[p.offset:]
	if len(p.stack) == 0 {
		p.addFreeform(rest)
		p.offset = len(p.doc)
		return
	}
	// Close unclosed blocks from the innermost outwards.
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
		appendHTML(top.node, p.doc[top.prevOffset:])
		if len(p.stack) == 0 {
			p.addFreeform(p.doc[top.leadingFrom:top.leadingTo])
			p.output = append(p.output, top.node)
			break
		}
		p.addInner(top.node, top.leadingTo, len(p.doc))
	}
	p.offset = len(p.doc)
}

func (p *parser) addFreeform(html string) {
	if html == "" {
		return
	}
	p.output = append(p.output, &Node{
		Attrs:        map[string]any{},
		InnerHTML:    html,
		InnerContent: []*string{&html},
	})
}

func appendHTML(n *Node, html string) {
	if html == "" {
		return
	}
	n.InnerHTML += html
	n.InnerContent = append(n.InnerContent, &html)
}
