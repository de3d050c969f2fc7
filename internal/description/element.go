package description

import (
	"strconv"
)

// Attribute is one name/value pair, kept in declaration order.
type Attribute struct {
	Name  string
	Value string
}

// Element is the in-memory description tree. It implements Node and is the
// output shape of every ToDescription method.
type Element struct {
	tag      string
	prefix   string
	attrs    []Attribute
	children []*Element
}

// NewElement returns an element with the given tag and no attributes.
func NewElement(tag string) *Element {
	return &Element{tag: tag}
}

func (e *Element) Tag() string {
	return e.tag
}

// Path locates the element for error messages: /Tag[Name]/Tag[Name]/...
func (e *Element) Path() string {
	label := e.tag
	if name, ok := e.Attr("Name"); ok {
		label += "[" + name + "]"
	}
	return e.prefix + "/" + label
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// Attributes returns the attributes in declaration order.
func (e *Element) Attributes() []Attribute {
	out := make([]Attribute, len(e.attrs))
	copy(out, e.attrs)
	return out
}

func (e *Element) Children() []Node {
	out := make([]Node, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

// Elements returns the concrete children.
func (e *Element) Elements() []*Element {
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Set adds or replaces an attribute and returns e for chaining.
func (e *Element) Set(name, value string) *Element {
	replaced := false
	for i := range e.attrs {
		if e.attrs[i].Name == name {
			e.attrs[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		e.attrs = append(e.attrs, Attribute{Name: name, Value: value})
	}
	// children cache their location prefix
	if name == "Name" {
		e.rebase(e.prefix)
	}
	return e
}

func (e *Element) SetInt(name string, v int64) *Element {
	return e.Set(name, strconv.FormatInt(v, 10))
}

func (e *Element) SetUint(name string, v uint64) *Element {
	return e.Set(name, strconv.FormatUint(v, 10))
}

func (e *Element) SetFloat(name string, v float64) *Element {
	return e.Set(name, strconv.FormatFloat(v, 'g', -1, 64))
}

func (e *Element) SetBool(name string, v bool) *Element {
	return e.Set(name, strconv.FormatBool(v))
}

// Add appends children and returns e for chaining.
func (e *Element) Add(children ...*Element) *Element {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.rebase(e.Path())
		e.children = append(e.children, c)
	}
	return e
}

func (e *Element) rebase(prefix string) {
	e.prefix = prefix
	for _, c := range e.children {
		c.rebase(e.Path())
	}
}

// Clone converts any Node into an independent Element tree.
func Clone(n Node) *Element {
	if n == nil {
		return nil
	}
	if el, ok := n.(*Element); ok {
		return el.clone()
	}
	out := NewElement(n.Tag())
	if lister, ok := n.(interface{ Attributes() []Attribute }); ok {
		for _, a := range lister.Attributes() {
			out.Set(a.Name, a.Value)
		}
	}
	for _, c := range n.Children() {
		out.Add(Clone(c))
	}
	return out
}

func (e *Element) clone() *Element {
	out := &Element{tag: e.tag}
	out.attrs = append(out.attrs, e.attrs...)
	for _, c := range e.children {
		out.Add(c.clone())
	}
	return out
}
