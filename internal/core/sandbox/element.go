package sandbox

import (
	"fmt"
	"strings"
)

// Element is a minimal document node as seen by the picker.
type Element struct {
	Tag  string
	ID   string
	Text string

	parent   *Element
	children []*Element
}

// El creates an element with the given tag and children.
func El(tag string, children ...*Element) *Element {
	e := &Element{Tag: strings.ToLower(tag)}
	return e.Append(children...)
}

// WithID sets the element id and returns e.
func (e *Element) WithID(id string) *Element {
	e.ID = id
	return e
}

// WithText sets the element's own text and returns e.
func (e *Element) WithText(text string) *Element {
	e.Text = text
	return e
}

// Append adds children to e and returns e.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		c.parent = e
		e.children = append(e.children, c)
	}
	return e
}

func (e *Element) Parent() *Element { return e.parent }

func (e *Element) Children() []*Element { return e.children }

// TextContent concatenates the text of e and all of its descendants in
// document order.
func (e *Element) TextContent() string {
	var sb strings.Builder
	var visit func(*Element)
	visit = func(n *Element) {
		sb.WriteString(n.Text)
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(e)
	return sb.String()
}

// Selector builds a structural selector for e by walking to the root. An
// element with an id short-circuits the walk. Otherwise each step is the tag
// name, with :nth-of-type when siblings share the tag.
func Selector(e *Element) string {
	var parts []string
	for cur := e; cur != nil; cur = cur.parent {
		if cur.ID != "" {
			parts = append(parts, "#"+cur.ID)
			break
		}
		parts = append(parts, step(cur))
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func step(e *Element) string {
	if e.parent == nil {
		return e.Tag
	}

	index, same := 0, 0
	for _, sib := range e.parent.children {
		if sib.Tag != e.Tag {
			continue
		}
		same++
		if sib == e {
			index = same
		}
	}
	if same == 1 {
		return e.Tag
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", e.Tag, index)
}
