package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/paramctl/internal/criteria"
)

// Transition records one domain state change made by an evaluation.
type Transition struct {
	Domain string
	From   string
	To     string
}

// Set is the ordered collection of domains of one engine.
type Set struct {
	domains []*Domain
}

func NewSet() *Set {
	return &Set{}
}

func (s *Set) List() []*Domain {
	out := make([]*Domain, len(s.domains))
	copy(out, s.domains)
	return out
}

// Get returns the named domain.
func (s *Set) Get(name string) (*Domain, error) {
	for _, d := range s.domains {
		if d.name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
}

// Add appends d. Domain names are unique and domains own disjoint elements.
func (s *Set) Add(d *Domain) error {
	if _, err := s.Get(d.name); err == nil {
		return fmt.Errorf("%w: domain %s", ErrDuplicate, d.name)
	}
	for _, el := range d.elements {
		if owner := s.ownerOf(el); owner != nil {
			return fmt.Errorf("%w: %s by %s", ErrElementOwned, el, owner.name)
		}
	}
	s.domains = append(s.domains, d)
	return nil
}

// Remove deletes the named domain. Its elements become free.
func (s *Set) Remove(name string) error {
	for i, d := range s.domains {
		if d.name == name {
			s.domains = append(s.domains[:i], s.domains[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownDomain, name)
}

// AddElement gives the domain ownership of path. A path may belong to one
// domain only, and never overlaps another domain's subtree.
func (s *Set) AddElement(domainName, path string) error {
	d, err := s.Get(domainName)
	if err != nil {
		return err
	}
	if owner := s.ownerOf(path); owner != nil {
		return fmt.Errorf("%w: %s by %s", ErrElementOwned, path, owner.name)
	}
	d.elements = append(d.elements, path)
	return nil
}

// RemoveElement drops path from the domain.
func (s *Set) RemoveElement(domainName, path string) error {
	d, err := s.Get(domainName)
	if err != nil {
		return err
	}
	for i, el := range d.elements {
		if el == path {
			d.elements = append(d.elements[:i], d.elements[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s in %s", ErrUnknownElement, path, domainName)
}

func (s *Set) ownerOf(path string) *Domain {
	for _, d := range s.domains {
		for _, el := range d.elements {
			if overlaps(el, path) {
				return d
			}
		}
	}
	return nil
}

func overlaps(a, b string) bool {
	a, b = strings.TrimSuffix(a, "/"), strings.TrimSuffix(b, "/")
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// Evaluate runs selection on every domain in order. Every domain is
// evaluated even when an earlier one fails; failures are joined.
func (s *Set) Evaluate(crit *criteria.Definition, a Applier) ([]Transition, error) {
	var (
		transitions []Transition
		errs        []error
	)
	for _, d := range s.domains {
		from := d.State()
		changed, err := d.Evaluate(crit, a)
		if err != nil {
			errs = append(errs, err)
		}
		if changed {
			transitions = append(transitions, Transition{Domain: d.name, From: from, To: d.State()})
		}
	}
	return transitions, errors.Join(errs...)
}

// Import writes settings without syncing. It stops at the first failure.
func Import(settings []Setting, a Applier) error {
	for _, st := range settings {
		if err := a.ApplySetting(st.Path, st.Value); err != nil {
			return fmt.Errorf("import %s: %w", st.Path, err)
		}
	}
	return nil
}
