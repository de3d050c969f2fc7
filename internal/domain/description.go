package domain

import (
	"fmt"

	"github.com/danmuck/paramctl/internal/criteria"
	"github.com/danmuck/paramctl/internal/description"
)

const (
	TagDomains       = "ConfigurableDomains"
	TagDomain        = "ConfigurableDomain"
	TagElements      = "ConfigurableElements"
	TagElement       = "ConfigurableElement"
	TagConfiguration = "Configuration"
	TagSettings      = "Settings"
	TagSetting       = "Setting"
)

func isRuleTag(tag string) bool {
	return tag == criteria.TagCompoundRule || tag == criteria.TagCriterionRule
}

// Load reads a ConfigurableDomains description. Rules are validated against
// crit so a typo in a criterion or value fails at load.
func Load(n description.Node, crit *criteria.Definition) (*Set, error) {
	if n.Tag() != TagDomains {
		return nil, fmt.Errorf("%s: expected %s, got %s", n.Path(), TagDomains, n.Tag())
	}
	set := NewSet()
	for _, dn := range n.Children() {
		if dn.Tag() != TagDomain {
			return nil, fmt.Errorf("%s: unexpected %s", dn.Path(), dn.Tag())
		}
		d, err := loadDomain(dn, crit)
		if err != nil {
			return nil, err
		}
		if err := set.Add(d); err != nil {
			return nil, fmt.Errorf("%s: %w", dn.Path(), err)
		}
	}
	return set, nil
}

func loadRule(n description.Node, crit *criteria.Definition) (criteria.Rule, error) {
	r, err := criteria.LoadRule(n)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(crit); err != nil {
		return nil, fmt.Errorf("%s: %w", n.Path(), err)
	}
	return r, nil
}

func loadDomain(n description.Node, crit *criteria.Definition) (*Domain, error) {
	name, err := description.String(n, "Name")
	if err != nil {
		return nil, err
	}
	d := New(name)
	for _, c := range n.Children() {
		switch {
		case isRuleTag(c.Tag()):
			if d.rule, err = loadRule(c, crit); err != nil {
				return nil, err
			}
		case c.Tag() == TagElements:
			for _, el := range c.Children() {
				p, err := description.String(el, "Path")
				if err != nil {
					return nil, err
				}
				for _, have := range d.elements {
					if overlaps(have, p) {
						return nil, fmt.Errorf("%s: %w: %s overlaps %s", el.Path(), ErrElementOwned, p, have)
					}
				}
				d.elements = append(d.elements, p)
			}
		case c.Tag() == TagConfiguration:
			conf, err := loadConfiguration(c, crit)
			if err != nil {
				return nil, err
			}
			if err := d.AddConfiguration(conf); err != nil {
				return nil, fmt.Errorf("%s: %w", c.Path(), err)
			}
		default:
			return nil, fmt.Errorf("%s: unexpected %s", c.Path(), c.Tag())
		}
	}
	return d, nil
}

func loadConfiguration(n description.Node, crit *criteria.Definition) (*Configuration, error) {
	name, err := description.String(n, "Name")
	if err != nil {
		return nil, err
	}
	conf := NewConfiguration(name)
	for _, c := range n.Children() {
		switch {
		case isRuleTag(c.Tag()):
			if conf.rule, err = loadRule(c, crit); err != nil {
				return nil, err
			}
		case c.Tag() == TagSettings:
			for _, sn := range c.Children() {
				p, err := description.String(sn, "Path")
				if err != nil {
					return nil, err
				}
				v, err := description.String(sn, "Value")
				if err != nil {
					return nil, err
				}
				conf.settings = append(conf.settings, Setting{Path: p, Value: v})
			}
		default:
			return nil, fmt.Errorf("%s: unexpected %s", c.Path(), c.Tag())
		}
	}
	return conf, nil
}

// ToDescription writes every domain with its rules and stored settings.
func (s *Set) ToDescription() *description.Element {
	root := description.NewElement(TagDomains)
	for _, d := range s.domains {
		de := description.NewElement(TagDomain).Set("Name", d.name)
		if d.rule != nil {
			de.Add(d.rule.ToDescription())
		}
		if len(d.elements) > 0 {
			els := description.NewElement(TagElements)
			for _, p := range d.elements {
				els.Add(description.NewElement(TagElement).Set("Path", p))
			}
			de.Add(els)
		}
		for _, c := range d.configs {
			ce := description.NewElement(TagConfiguration).Set("Name", c.name)
			if c.rule != nil {
				ce.Add(c.rule.ToDescription())
			}
			st := description.NewElement(TagSettings)
			for _, kv := range c.settings {
				st.Add(description.NewElement(TagSetting).Set("Path", kv.Path).Set("Value", kv.Value))
			}
			ce.Add(st)
			de.Add(ce)
		}
		root.Add(de)
	}
	return root
}
