package engine

import (
	"fmt"
	"strings"

	"github.com/danmuck/paramctl/internal/criteria"
	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/domain"
	"github.com/danmuck/paramctl/internal/observability"
)

// Status is the engine summary.
type Status struct {
	System     string            `json:"system"`
	Tuning     bool              `json:"tuning"`
	AutoSync   bool              `json:"auto_sync"`
	Bytes      int               `json:"bytes"`
	Subsystems []string          `json:"subsystems"`
	Criteria   map[string]string `json:"criteria"`
	Domains    map[string]string `json:"domains"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		System:   e.structure.Root().Name(),
		Tuning:   e.tuning,
		AutoSync: e.autoSync,
		Bytes:    e.structure.Blackboard().Size(),
		Criteria: make(map[string]string),
		Domains:  make(map[string]string),
	}
	for _, sub := range e.structure.Subsystems() {
		st.Subsystems = append(st.Subsystems, fmt.Sprintf("%s (%s)", sub.Name(), sub.BackendType()))
	}
	for _, c := range e.criteria.List() {
		st.Criteria[c.Name()] = c.FormattedState()
	}
	for _, d := range e.domains.List() {
		st.Domains[d.Name()] = d.State()
	}
	return st
}

// StatusMap is Status shaped for the admin endpoint.
func (e *Engine) StatusMap() map[string]any {
	st := e.Status()
	return map[string]any{
		"system":     st.System,
		"tuning":     st.Tuning,
		"auto_sync":  st.AutoSync,
		"bytes":      st.Bytes,
		"subsystems": st.Subsystems,
		"criteria":   st.Criteria,
		"domains":    st.Domains,
	}
}

func (e *Engine) TuningMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tuning
}

// SetTuningMode switches tuning on or off. Leaving tuning mode re-runs
// selection so the criteria changed meanwhile take effect.
func (e *Engine) SetTuningMode(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on && !e.tuningAllowed {
		return ErrTuningNotAllowed
	}
	if on == e.tuning {
		return nil
	}
	e.tuning = on
	e.logger.Info().Bool("tuning", on).Msg("tuning mode")
	if !on {
		return e.applyConfigurations()
	}
	return nil
}

func (e *Engine) AutoSync() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoSync
}

// SetAutoSync switches auto-sync. Turning it on pushes the whole blackboard.
func (e *Engine) SetAutoSync(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on == e.autoSync {
		return nil
	}
	e.autoSync = on
	e.logger.Info().Bool("auto_sync", on).Msg("auto sync")
	if on {
		return e.runSync("sync", e.structure.SyncAll(), false)
	}
	return nil
}

// Sync pushes every syncer of the tree. With pullBack each backend's state
// is then read back into the blackboard.
func (e *Engine) Sync(pullBack bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	reason := "sync"
	if pullBack {
		reason = "pull"
	}
	return e.runSync(reason, e.structure.SyncAll(), pullBack)
}

// Criteria lists every criterion with its kind, values and state.
func (e *Engine) Criteria() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.criteria.List()))
	for _, c := range e.criteria.List() {
		out = append(out, fmt.Sprintf("%s (%s) {%s} = %s", c.Name(), c.Kind(), strings.Join(c.Values(), ","), c.FormattedState()))
	}
	return out
}

func (e *Engine) CriterionState(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.criteria.Get(name)
	if err != nil {
		return "", err
	}
	return c.FormattedState(), nil
}

// SetCriterionState updates a criterion and, outside tuning mode, applies
// the configurations the new state selects.
func (e *Engine) SetCriterionState(name string, values ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.criteria.Get(name)
	if err != nil {
		return err
	}
	changed, err := c.SetState(values...)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	observability.RecordCriterionChange(name)
	e.logger.Info().Str("criterion", name).Str("state", c.FormattedState()).Msg("criterion changed")
	if e.tuning {
		return nil
	}
	return e.applyConfigurations()
}

// ApplyConfigurations forces a selection pass.
func (e *Engine) ApplyConfigurations() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tuning {
		return ErrTuningActive
	}
	return e.applyConfigurations()
}

// Domains lists "name: state" for each domain.
func (e *Engine) Domains() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.domains.List()
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, fmt.Sprintf("%s: %s", d.Name(), d.State()))
	}
	return out
}

func (e *Engine) CreateDomain(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty domain name", domain.ErrUnknownDomain)
	}
	return e.domains.Add(domain.New(name))
}

func (e *Engine) DeleteDomain(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.domains.Remove(name)
}

// Configurations lists the configurations of a domain, the active one
// marked with "*".
func (e *Engine) Configurations(domainName string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.domains.Get(domainName)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range d.Configurations() {
		name := c.Name()
		if c == d.Active() {
			name += " *"
		}
		out = append(out, name)
	}
	return out, nil
}

func (e *Engine) CreateConfiguration(domainName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.domains.Get(domainName)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty configuration name", domain.ErrUnknownConfiguration)
	}
	return d.AddConfiguration(domain.NewConfiguration(name))
}

func (e *Engine) DeleteConfiguration(domainName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.domains.Get(domainName)
	if err != nil {
		return err
	}
	return d.RemoveConfiguration(name)
}

// SaveConfiguration stores the current values of the domain's elements in
// the named configuration.
func (e *Engine) SaveConfiguration(domainName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.domains.Get(domainName)
	if err != nil {
		return err
	}
	return d.Save(name, applier{e: e, reason: "save"})
}

// RestoreConfiguration applies a configuration regardless of rules. Only
// available in tuning mode, where selection does not override it.
func (e *Engine) RestoreConfiguration(domainName, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.tuning {
		return ErrTuningRequired
	}
	d, err := e.domains.Get(domainName)
	if err != nil {
		return err
	}
	if err := d.Restore(name, applier{e: e, reason: "restore"}); err != nil {
		observability.RecordDomainApply(domainName, "failure")
		return err
	}
	observability.RecordDomainApply(domainName, "restore")
	return nil
}

func (e *Engine) ConfigurationRule(domainName, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.configuration(domainName, name)
	if err != nil {
		return "", err
	}
	if c.Rule() == nil {
		return "<none>", nil
	}
	return c.Rule().String(), nil
}

// SetConfigurationRule parses and validates text before installing it.
// Blank text clears the rule.
func (e *Engine) SetConfigurationRule(domainName, name, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.configuration(domainName, name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		c.SetRule(nil)
		return nil
	}
	r, err := criteria.Parse(text)
	if err != nil {
		return err
	}
	if err := r.Validate(e.criteria); err != nil {
		return err
	}
	c.SetRule(r)
	return nil
}

func (e *Engine) configuration(domainName, name string) (*domain.Configuration, error) {
	d, err := e.domains.Get(domainName)
	if err != nil {
		return nil, err
	}
	return d.Configuration(name)
}

// AddElement gives a domain ownership of the subtree at path.
func (e *Engine) AddElement(domainName, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, err := e.structure.Resolve(path)
	if err != nil {
		return err
	}
	return e.domains.AddElement(domainName, inst.Path())
}

// RemoveElement accepts the same path spellings as AddElement. A path that no
// longer resolves is removed as given.
func (e *Engine) RemoveElement(domainName, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inst, err := e.structure.Resolve(path); err == nil {
		path = inst.Path()
	}
	return e.domains.RemoveElement(domainName, path)
}

func (e *Engine) DomainElements(domainName string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.domains.Get(domainName)
	if err != nil {
		return nil, err
	}
	return d.Elements(), nil
}

// ExportSettings returns the stored settings of a configuration, or the
// current values of the domain's elements when configName is empty.
func (e *Engine) ExportSettings(domainName, configName string) ([]domain.Setting, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.domains.Get(domainName)
	if err != nil {
		return nil, err
	}
	if configName == "" {
		return d.Export(applier{e: e, reason: "export"})
	}
	c, err := d.Configuration(configName)
	if err != nil {
		return nil, err
	}
	return c.Settings(), nil
}

// ImportSettings writes settings without syncing. Tuning mode only.
func (e *Engine) ImportSettings(settings []domain.Setting) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.tuning {
		return ErrTuningRequired
	}
	return domain.Import(settings, applier{e: e, reason: "import"})
}

// ExportDocument renders criteria (current states as defaults) and domains
// as one ParameterSettings YAML document.
func (e *Engine) ExportDocument() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc := description.NewElement(TagSettings).Add(e.criteria.ToDescription(), e.domains.ToDescription())
	return description.MarshalYAML(doc)
}
