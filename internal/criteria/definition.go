package criteria

import (
	"fmt"
	"strings"

	"github.com/danmuck/paramctl/internal/description"
)

const (
	TagSelectionCriteria  = "SelectionCriteria"
	TagSelectionCriterion = "SelectionCriterion"
)

// Definition is the ordered set of criteria known to the engine.
type Definition struct {
	order []*Criterion
	byKey map[string]*Criterion
}

func NewDefinition() *Definition {
	return &Definition{byKey: make(map[string]*Criterion)}
}

// Add registers c. Names are unique.
func (d *Definition) Add(c *Criterion) error {
	if _, ok := d.byKey[c.name]; ok {
		return fmt.Errorf("%w: criterion %s", ErrDuplicate, c.name)
	}
	d.byKey[c.name] = c
	d.order = append(d.order, c)
	return nil
}

// Get returns the named criterion.
func (d *Definition) Get(name string) (*Criterion, error) {
	c, ok := d.byKey[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCriterion, name)
	}
	return c, nil
}

// List returns the criteria in declaration order.
func (d *Definition) List() []*Criterion {
	out := make([]*Criterion, len(d.order))
	copy(out, d.order)
	return out
}

// Load reads a SelectionCriteria description:
//
//	tag: SelectionCriteria
//	children:
//	  - tag: SelectionCriterion
//	    attrs: {Name: Mode, Type: Exclusive, Values: "Normal,Call,Media", Default: Media}
func Load(n description.Node) (*Definition, error) {
	if n.Tag() != TagSelectionCriteria {
		return nil, fmt.Errorf("%s: expected %s, got %s", n.Path(), TagSelectionCriteria, n.Tag())
	}
	d := NewDefinition()
	for _, c := range n.Children() {
		if c.Tag() != TagSelectionCriterion {
			return nil, fmt.Errorf("%s: unexpected %s", c.Path(), c.Tag())
		}
		name, err := description.String(c, "Name")
		if err != nil {
			return nil, err
		}
		kind, err := ParseKind(description.StringOr(c, "Type", "Exclusive"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Path(), err)
		}
		raw, err := description.String(c, "Values")
		if err != nil {
			return nil, err
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			values = append(values, strings.TrimSpace(v))
		}
		crit, err := New(name, kind, values...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Path(), err)
		}
		if def, ok := c.Attr("Default"); ok {
			if _, err := crit.SetState(def); err != nil {
				return nil, fmt.Errorf("%s: default: %w", c.Path(), err)
			}
		}
		if err := d.Add(crit); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Path(), err)
		}
	}
	return d, nil
}

// ToDescription writes the definition with the current states as defaults.
func (d *Definition) ToDescription() *description.Element {
	el := description.NewElement(TagSelectionCriteria)
	for _, c := range d.order {
		ce := description.NewElement(TagSelectionCriterion).
			Set("Name", c.name).
			Set("Type", c.kind.String()).
			Set("Values", strings.Join(c.values, ","))
		if st := c.State(); len(st) > 0 {
			ce.Set("Default", strings.Join(st, "|"))
		}
		el.Add(ce)
	}
	return el
}
