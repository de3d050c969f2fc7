// Package engine is the parameter manager facade.
//
// Ownership boundary:
// - loading a structure and its settings into one live instance tree
// - the single mutual-exclusion boundary around blackboard, criteria and
//   domain state
// - tuning mode, auto-sync and every operation the remote channel exposes
//
// Every exported method takes the engine lock; unexported helpers assume it
// is held.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/paramctl/internal/criteria"
	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/domain"
	"github.com/danmuck/paramctl/internal/observability"
	"github.com/danmuck/paramctl/internal/parameter"
	"github.com/danmuck/paramctl/internal/syncer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TagSettings = "ParameterSettings"

var (
	ErrTuningRequired   = errors.New("engine: tuning mode required")
	ErrTuningActive     = errors.New("engine: not allowed in tuning mode")
	ErrTuningNotAllowed = errors.New("engine: tuning mode not allowed")
	ErrBadSettings      = errors.New("engine: malformed settings")
)

// Options tunes a loaded engine.
type Options struct {
	// TuningAllowed gates setTuningMode on.
	TuningAllowed bool
	// AutoSync pushes every parameter write to its backend immediately.
	AutoSync bool
	Logger   *zerolog.Logger
}

func DefaultOptions() Options {
	return Options{TuningAllowed: true, AutoSync: true}
}

// Sources are the parsed inputs of one engine. Settings may be nil.
type Sources struct {
	Structure description.Node
	Settings  description.Node
}

type Engine struct {
	mu sync.Mutex

	structure *parameter.Structure
	criteria  *criteria.Definition
	domains   *domain.Set

	tuning        bool
	tuningAllowed bool
	autoSync      bool

	logger zerolog.Logger
}

// Load builds the structure, maps it onto backends, reads the settings and
// applies the configurations selected by the initial criteria.
func Load(src Sources, backends *syncer.Registry, opts Options) (*Engine, error) {
	if src.Structure == nil {
		return nil, fmt.Errorf("%w: no structure", ErrBadSettings)
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "engine").Logger()

	def, err := parameter.LoadSystem(src.Structure, parameter.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("load structure: %w", err)
	}
	structure, err := parameter.Build(def, backends)
	if err != nil {
		return nil, fmt.Errorf("build structure: %w", err)
	}

	crit, domains, err := loadSettings(src.Settings)
	if err != nil {
		_ = structure.Close()
		return nil, err
	}

	e := &Engine{
		structure:     structure,
		criteria:      crit,
		domains:       domains,
		tuningAllowed: opts.TuningAllowed,
		autoSync:      opts.AutoSync,
		logger:        logger,
	}
	for _, d := range domains.List() {
		for _, el := range d.Elements() {
			if _, err := structure.Resolve(el); err != nil {
				_ = structure.Close()
				return nil, fmt.Errorf("domain %s: element %s: %w", d.Name(), el, err)
			}
		}
	}

	res := e.structure.SyncAll().Sync(e.structure.Blackboard(), false)
	observability.RecordSync("start", res.Outcome.String(), len(res.Errors))
	if err := res.Err(); err != nil {
		logger.Warn().Err(err).Msg("initial sync failed")
	}
	if err := e.applyConfigurations(); err != nil {
		logger.Warn().Err(err).Msg("initial configuration apply failed")
	}
	logger.Info().
		Str("system", def.Name()).
		Int("subsystems", len(structure.Subsystems())).
		Int("bytes", structure.Blackboard().Size()).
		Int("criteria", len(crit.List())).
		Int("domains", len(domains.List())).
		Msg("engine loaded")
	return e, nil
}

// LoadFiles reads the YAML structure and optional settings files.
func LoadFiles(structurePath, settingsPath string, backends *syncer.Registry, opts Options) (*Engine, error) {
	structure, err := description.LoadYAMLFile(structurePath)
	if err != nil {
		return nil, err
	}
	src := Sources{Structure: structure}
	if strings.TrimSpace(settingsPath) != "" {
		settings, err := description.LoadYAMLFile(settingsPath)
		if err != nil {
			return nil, err
		}
		src.Settings = settings
	}
	return Load(src, backends, opts)
}

// loadSettings reads a ParameterSettings document holding an optional
// SelectionCriteria and an optional ConfigurableDomains child.
func loadSettings(n description.Node) (*criteria.Definition, *domain.Set, error) {
	crit := criteria.NewDefinition()
	domains := domain.NewSet()
	if n == nil {
		return crit, domains, nil
	}
	if n.Tag() != TagSettings {
		return nil, nil, fmt.Errorf("%w: %s: expected %s, got %s", ErrBadSettings, n.Path(), TagSettings, n.Tag())
	}
	var err error
	if cn, ok := description.FirstChild(n, criteria.TagSelectionCriteria); ok {
		if crit, err = criteria.Load(cn); err != nil {
			return nil, nil, fmt.Errorf("load criteria: %w", err)
		}
	}
	if dn, ok := description.FirstChild(n, domain.TagDomains); ok {
		if domains, err = domain.Load(dn, crit); err != nil {
			return nil, nil, fmt.Errorf("load domains: %w", err)
		}
	}
	return crit, domains, nil
}

// Close releases every backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.structure.Close()
}

// applier routes domain writes through the structure. reason labels the
// sync metrics of the operation that created it.
type applier struct {
	e      *Engine
	reason string
}

func (a applier) ApplySetting(path, value string) error {
	_, err := a.e.structure.Set(path, value)
	return err
}

func (a applier) ReadSetting(path string) (string, error) {
	return a.e.structure.Get(path)
}

func (a applier) Expand(path string) ([]string, error) {
	params, err := a.e.structure.Parameters(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Path())
	}
	return out, nil
}

func (a applier) Sync(paths []string) error {
	set := syncer.NewSet()
	for _, p := range paths {
		s, err := a.e.structure.SyncerSetFor(p)
		if err != nil {
			return err
		}
		set.Merge(s)
	}
	return a.e.runSync(a.reason, set, false)
}

func (e *Engine) runSync(reason string, set *syncer.Set, pullBack bool) error {
	res := set.Sync(e.structure.Blackboard(), pullBack)
	observability.RecordSync(reason, res.Outcome.String(), len(res.Errors))
	if err := res.Err(); err != nil {
		e.logger.Warn().Str("reason", reason).Err(err).Msg("sync failed")
		return err
	}
	e.logger.Debug().Str("reason", reason).Str("outcome", res.Outcome.String()).Int("synced", res.Synced).Msg("sync")
	return nil
}

// applyConfigurations runs selection on every domain.
func (e *Engine) applyConfigurations() error {
	transitions, err := e.domains.Evaluate(e.criteria, applier{e: e, reason: "apply"})
	for _, tr := range transitions {
		observability.RecordDomainApply(tr.Domain, "transition")
		e.logger.Info().Str("domain", tr.Domain).Str("from", tr.From).Str("to", tr.To).Msg("domain transition")
	}
	if err != nil {
		var applyErr *domain.ApplyError
		if errors.As(err, &applyErr) {
			observability.RecordDomainApply(applyErr.Domain, "failure")
		}
		e.logger.Error().Err(err).Msg("apply configurations")
	}
	return err
}
