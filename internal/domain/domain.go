// Package domain owns configurable domains and the selection engine that
// applies them.
//
// Ownership boundary:
// - domains, their configurations and sparse (path, value) settings
// - selection: which configuration of each domain applies for the current
//   criteria, and applying it through an Applier
// - settings save/restore/export/import and description load/save
//
// The package never touches the blackboard directly; every write and sync
// goes through the Applier supplied by the engine.
package domain

import (
	"errors"
	"fmt"

	"github.com/danmuck/paramctl/internal/criteria"
)

var (
	ErrUnknownDomain        = errors.New("domain: unknown domain")
	ErrUnknownConfiguration = errors.New("domain: unknown configuration")
	ErrDuplicate            = errors.New("domain: duplicate name")
	ErrElementOwned         = errors.New("domain: element already owned")
	ErrUnknownElement       = errors.New("domain: element not in domain")
)

// Applier performs typed writes and syncs on behalf of the selection engine.
type Applier interface {
	// ApplySetting converts value for the parameter at path and writes it to
	// the blackboard without syncing.
	ApplySetting(path, value string) error
	// ReadSetting returns the textual value of the parameter at path.
	ReadSetting(path string) (string, error)
	// Expand lists the parameter paths at or below path.
	Expand(path string) ([]string, error)
	// Sync pushes the syncers owning paths.
	Sync(paths []string) error
}

// Setting is one (path, value) pair of a configuration.
type Setting struct {
	Path  string
	Value string
}

// Configuration is a named, sparse set of settings with an optional rule
// refining when it applies.
type Configuration struct {
	name     string
	rule     criteria.Rule
	settings []Setting
}

func NewConfiguration(name string) *Configuration {
	return &Configuration{name: name}
}

func (c *Configuration) Name() string { return c.name }

// Rule returns the configuration rule; nil always matches.
func (c *Configuration) Rule() criteria.Rule { return c.rule }

func (c *Configuration) SetRule(r criteria.Rule) {
	c.rule = r
}

func (c *Configuration) Settings() []Setting {
	out := make([]Setting, len(c.settings))
	copy(out, c.settings)
	return out
}

// SetSettings replaces the settings; order is the apply order.
func (c *Configuration) SetSettings(s []Setting) {
	c.settings = append([]Setting(nil), s...)
}

func (c *Configuration) matches(d *criteria.Definition) (bool, error) {
	if c.rule == nil {
		return true, nil
	}
	return c.rule.Matches(d)
}

// Domain selects at most one of its configurations at a time.
type Domain struct {
	name     string
	rule     criteria.Rule
	configs  []*Configuration
	elements []string
	active   *Configuration
}

func New(name string) *Domain {
	return &Domain{name: name}
}

func (d *Domain) Name() string { return d.name }

// Rule returns the applicability rule; nil always matches.
func (d *Domain) Rule() criteria.Rule { return d.rule }

func (d *Domain) SetRule(r criteria.Rule) {
	d.rule = r
}

// Active returns the applied configuration, nil while inactive.
func (d *Domain) Active() *Configuration {
	return d.active
}

// State renders "Inactive" or "Active(<configuration>)".
func (d *Domain) State() string {
	if d.active == nil {
		return "Inactive"
	}
	return "Active(" + d.active.name + ")"
}

func (d *Domain) Configurations() []*Configuration {
	out := make([]*Configuration, len(d.configs))
	copy(out, d.configs)
	return out
}

// Configuration returns the named configuration.
func (d *Domain) Configuration(name string) (*Configuration, error) {
	for _, c := range d.configs {
		if c.name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrUnknownConfiguration, d.name, name)
}

// AddConfiguration appends c; names are unique within the domain.
func (d *Domain) AddConfiguration(c *Configuration) error {
	if _, err := d.Configuration(c.name); err == nil {
		return fmt.Errorf("%w: configuration %s/%s", ErrDuplicate, d.name, c.name)
	}
	d.configs = append(d.configs, c)
	return nil
}

// RemoveConfiguration deletes the named configuration. Removing the active
// one leaves the domain inactive.
func (d *Domain) RemoveConfiguration(name string) error {
	for i, c := range d.configs {
		if c.name != name {
			continue
		}
		d.configs = append(d.configs[:i], d.configs[i+1:]...)
		if d.active == c {
			d.active = nil
		}
		return nil
	}
	return fmt.Errorf("%w: %s/%s", ErrUnknownConfiguration, d.name, name)
}

// Elements lists the paths the domain owns, in insertion order.
func (d *Domain) Elements() []string {
	out := make([]string, len(d.elements))
	copy(out, d.elements)
	return out
}

// ApplyError reports the setting that stopped a configuration apply. Settings
// before it stay written.
type ApplyError struct {
	Domain        string
	Configuration string
	Path          string
	Err           error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("domain %s: configuration %s: %s: %v", e.Domain, e.Configuration, e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Evaluate runs selection for this domain and reports whether the state
// changed. The domain rule and then the first matching configuration decide;
// re-selecting the active configuration writes nothing.
func (d *Domain) Evaluate(crit *criteria.Definition, a Applier) (bool, error) {
	before := d.active
	target, err := d.selectConfiguration(crit)
	if err != nil {
		d.active = nil
		return before != nil, err
	}
	if target == nil {
		d.active = nil
		return before != nil, nil
	}
	if target == before {
		return false, nil
	}
	err = d.apply(target, a)
	return d.active != before, err
}

func (d *Domain) selectConfiguration(crit *criteria.Definition) (*Configuration, error) {
	if d.rule != nil {
		ok, err := d.rule.Matches(crit)
		if err != nil {
			return nil, fmt.Errorf("domain %s: rule: %w", d.name, err)
		}
		if !ok {
			return nil, nil
		}
	}
	for _, c := range d.configs {
		ok, err := c.matches(crit)
		if err != nil {
			return nil, fmt.Errorf("domain %s: configuration %s: rule: %w", d.name, c.name, err)
		}
		if ok {
			return c, nil
		}
	}
	return nil, nil
}

// apply writes c's settings in order and syncs what was written. A failing
// setting aborts the rest and leaves the domain inactive.
func (d *Domain) apply(c *Configuration, a Applier) error {
	touched := make([]string, 0, len(c.settings))
	var applyErr error
	for _, s := range c.settings {
		if err := a.ApplySetting(s.Path, s.Value); err != nil {
			applyErr = &ApplyError{Domain: d.name, Configuration: c.name, Path: s.Path, Err: err}
			break
		}
		touched = append(touched, s.Path)
	}
	var syncErr error
	if len(touched) > 0 {
		syncErr = a.Sync(touched)
	}
	if applyErr != nil {
		d.active = nil
		return errors.Join(applyErr, syncErr)
	}
	d.active = c
	return syncErr
}

// Save captures the current value of every parameter the domain owns into
// the named configuration.
func (d *Domain) Save(name string, a Applier) error {
	c, err := d.Configuration(name)
	if err != nil {
		return err
	}
	var settings []Setting
	for _, el := range d.elements {
		paths, err := a.Expand(el)
		if err != nil {
			return fmt.Errorf("domain %s: save %s: %w", d.name, name, err)
		}
		for _, p := range paths {
			v, err := a.ReadSetting(p)
			if err != nil {
				return fmt.Errorf("domain %s: save %s: %w", d.name, name, err)
			}
			settings = append(settings, Setting{Path: p, Value: v})
		}
	}
	c.settings = settings
	return nil
}

// Restore applies the named configuration regardless of rules.
func (d *Domain) Restore(name string, a Applier) error {
	c, err := d.Configuration(name)
	if err != nil {
		return err
	}
	return d.apply(c, a)
}

// Export reads the current value of every parameter the domain owns. Nothing
// is synced.
func (d *Domain) Export(a Applier) ([]Setting, error) {
	var out []Setting
	for _, el := range d.elements {
		paths, err := a.Expand(el)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			v, err := a.ReadSetting(p)
			if err != nil {
				return nil, err
			}
			out = append(out, Setting{Path: p, Value: v})
		}
	}
	return out, nil
}
