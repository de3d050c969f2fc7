package description

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrBadDocument = errors.New("description: malformed document")

// yamlElement is the on-disk shape:
//
//	tag: Subsystem
//	attrs: {Name: Core, Type: Virtual}
//	children: [...]
type yamlElement struct {
	Tag      string        `yaml:"tag"`
	Attrs    yaml.Node     `yaml:"attrs,omitempty"`
	Children []yamlElement `yaml:"children,omitempty"`
}

// DecodeYAML reads one description tree.
func DecodeYAML(r io.Reader) (*Element, error) {
	var doc yamlElement
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	return fromYAML(doc, "")
}

// ParseYAML decodes an in-memory document.
func ParseYAML(data []byte) (*Element, error) {
	return DecodeYAML(bytes.NewReader(data))
}

// LoadYAMLFile decodes the description stored at path.
func LoadYAMLFile(path string) (*Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("description load failed (%s): %w", path, err)
	}
	defer f.Close()
	el, err := DecodeYAML(f)
	if err != nil {
		return nil, fmt.Errorf("description parse failed (%s): %w", path, err)
	}
	return el, nil
}

func fromYAML(doc yamlElement, at string) (*Element, error) {
	if doc.Tag == "" {
		return nil, fmt.Errorf("%w: %s: element without tag", ErrBadDocument, at)
	}
	el := NewElement(doc.Tag)
	switch doc.Attrs.Kind {
	case 0:
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Attrs.Content); i += 2 {
			k, v := doc.Attrs.Content[i], doc.Attrs.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: %s: attribute %q is not a scalar (line %d)", ErrBadDocument, el.Path(), k.Value, v.Line)
			}
			el.Set(k.Value, v.Value)
		}
	default:
		return nil, fmt.Errorf("%w: %s: attrs must be a mapping (line %d)", ErrBadDocument, el.Path(), doc.Attrs.Line)
	}
	for _, c := range doc.Children {
		child, err := fromYAML(c, el.Path())
		if err != nil {
			return nil, err
		}
		el.Add(child)
	}
	return el, nil
}

// EncodeYAML writes a description tree.
func EncodeYAML(w io.Writer, n Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toYAML(Clone(n))); err != nil {
		return err
	}
	return enc.Close()
}

// MarshalYAML renders a description tree to bytes.
func MarshalYAML(n Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeYAML(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toYAML(el *Element) yamlElement {
	out := yamlElement{Tag: el.Tag()}
	if len(el.attrs) > 0 {
		out.Attrs = yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
		for _, a := range el.attrs {
			out.Attrs.Content = append(out.Attrs.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: a.Name},
				&yaml.Node{Kind: yaml.ScalarNode, Value: a.Value},
			)
		}
	}
	for _, c := range el.children {
		out.Children = append(out.Children, toYAML(c))
	}
	return out
}
