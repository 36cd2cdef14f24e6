package stanza

// Element is an opaque stanza payload: a minimal XML-shaped tree. The wire
// parser/serializer lives behind the transport boundary, so elements are
// only ever built and inspected in memory here.
type Element struct {
	Name      string            `json:"name"`
	Namespace string            `json:"ns,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Text      string            `json:"text,omitempty"`
	Children  []*Element        `json:"children,omitempty"`
}

// NewElement builds a payload element qualified by the given namespace.
func NewElement(namespace, name string) *Element {
	return &Element{Name: name, Namespace: namespace}
}

// Attr returns the value of an attribute, or "" when absent.
func (e *Element) Attr(key string) string {
	if e == nil {
		return ""
	}
	return e.Attrs[key]
}

// SetAttr sets an attribute and returns the element for chaining.
func (e *Element) SetAttr(key, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[key] = value
	return e
}

// Child returns the first direct child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Append adds child elements and returns the element for chaining.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Clone deep-copies the element tree.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := &Element{Name: e.Name, Namespace: e.Namespace, Text: e.Text}
	if e.Attrs != nil {
		c.Attrs = make(map[string]string, len(e.Attrs))
		for k, v := range e.Attrs {
			c.Attrs[k] = v
		}
	}
	for _, child := range e.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}
