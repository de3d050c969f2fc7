package engine

import (
	"strings"
	"testing"

	"github.com/danmuck/paramctl/internal/criteria"
	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/domain"
	"github.com/danmuck/paramctl/internal/parameter"
	"github.com/danmuck/paramctl/internal/syncer"
	"github.com/danmuck/paramctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStructure = `
tag: SystemClass
attrs: {Name: Audio}
children:
  - tag: Subsystem
    attrs: {Name: Core, Type: Memory}
    children:
      - tag: InstanceDefinition
        children:
          - {tag: IntegerParameter, attrs: {Name: gain, Size: 8}}
          - {tag: IntegerParameter, attrs: {Name: volume, Size: 16, Mapping: "Register:vol"}}
          - tag: ParameterBlock
            attrs: {Name: eq, ArrayLength: 3}
            children:
              - {tag: IntegerParameter, attrs: {Name: band, Size: 8}}
`

const testSettings = `
tag: ParameterSettings
children:
  - tag: SelectionCriteria
    children:
      - {tag: SelectionCriterion, attrs: {Name: Mode, Type: Exclusive, Values: "Normal,Media", Default: Normal}}
  - tag: ConfigurableDomains
    children:
      - tag: ConfigurableDomain
        attrs: {Name: Volume}
        children:
          - tag: ConfigurableElements
            children:
              - {tag: ConfigurableElement, attrs: {Path: /Audio/Core/gain}}
          - tag: Configuration
            attrs: {Name: Loud}
            children:
              - {tag: SelectionCriterionRule, attrs: {SelectionCriterion: Mode, MatchesWhen: Is, Value: Media}}
              - tag: Settings
                children:
                  - {tag: Setting, attrs: {Path: /Audio/Core/gain, Value: "90"}}
          - tag: Configuration
            attrs: {Name: Quiet}
            children:
              - tag: Settings
                children:
                  - {tag: Setting, attrs: {Path: /Audio/Core/gain, Value: "20"}}
`

func parse(t *testing.T, doc string) *description.Element {
	t.Helper()
	el, err := description.ParseYAML([]byte(doc))
	require.NoError(t, err)
	return el
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := syncer.NewRegistry()
	require.NoError(t, reg.Register(syncer.MemoryType, syncer.NewMemoryBackend))
	logger := testlog.Logger(t)
	opts := DefaultOptions()
	opts.Logger = &logger
	e, err := Load(Sources{Structure: parse(t, testStructure), Settings: parse(t, testSettings)}, reg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func coreBackend(t *testing.T, e *Engine) *syncer.MemoryBackend {
	t.Helper()
	mem, ok := e.structure.Subsystems()[0].Backend().(*syncer.MemoryBackend)
	require.True(t, ok)
	return mem
}

func TestLoadAppliesInitialSelection(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)

	v, err := e.GetParameter("/Audio/Core/gain")
	require.NoError(t, err)
	assert.Equal(t, "20", v)
	assert.Equal(t, []string{"Volume: Active(Quiet)"}, e.Domains())

	reg, ok := coreBackend(t, e).Register("/Audio/Core")
	require.True(t, ok)
	assert.Equal(t, byte(20), reg[0])
}

func TestCriterionChangeAppliesAndSyncs(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)
	mem := coreBackend(t, e)
	before := mem.Writes("/Audio/Core")

	require.NoError(t, e.SetCriterionState("Mode", "Media"))
	v, err := e.GetParameter("/Audio/Core/gain")
	require.NoError(t, err)
	assert.Equal(t, "90", v)
	assert.Equal(t, before+1, mem.Writes("/Audio/Core"))

	state, err := e.CriterionState("Mode")
	require.NoError(t, err)
	assert.Equal(t, "Media", state)

	// unchanged state: no selection pass, no write
	require.NoError(t, e.SetCriterionState("Mode", "Media"))
	assert.Equal(t, before+1, mem.Writes("/Audio/Core"))

	assert.ErrorIs(t, e.SetCriterionState("Mode", "Radio"), criteria.ErrUnknownValue)
	assert.ErrorIs(t, e.SetCriterionState("Route", "Speaker"), criteria.ErrUnknownCriterion)
}

func TestTuningModeGatesWritesAndDefersSelection(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)

	assert.ErrorIs(t, e.SetParameter("/Audio/Core/gain", "5"), ErrTuningRequired)

	require.NoError(t, e.SetTuningMode(true))
	assert.True(t, e.TuningMode())
	assert.ErrorIs(t, e.ApplyConfigurations(), ErrTuningActive)

	require.NoError(t, e.SetParameter("/Audio/Core/gain", "5"))
	require.NoError(t, e.SetCriterionState("Mode", "Media"))
	v, err := e.GetParameter("/Audio/Core/gain")
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	require.NoError(t, e.SetTuningMode(false))
	v, err = e.GetParameter("/Audio/Core/gain")
	require.NoError(t, err)
	assert.Equal(t, "90", v)
}

func TestTuningCanBeDisallowed(t *testing.T) {
	testlog.Start(t)
	reg := syncer.NewRegistry()
	require.NoError(t, reg.Register(syncer.MemoryType, syncer.NewMemoryBackend))
	opts := DefaultOptions()
	opts.TuningAllowed = false
	e, err := Load(Sources{Structure: parse(t, testStructure)}, reg, opts)
	require.NoError(t, err)
	defer e.Close()
	assert.ErrorIs(t, e.SetTuningMode(true), ErrTuningNotAllowed)
}

func TestAutoSyncOffDefersPushUntilSync(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)
	mem := coreBackend(t, e)
	require.NoError(t, e.SetTuningMode(true))
	require.NoError(t, e.SetAutoSync(false))
	assert.False(t, e.AutoSync())

	before := mem.Writes("vol")
	require.NoError(t, e.SetParameter("/Audio/Core/volume", "300"))
	assert.Equal(t, before, mem.Writes("vol"))

	require.NoError(t, e.Sync(false))
	assert.Equal(t, before+1, mem.Writes("vol"))
	reg, ok := mem.Register("vol")
	require.True(t, ok)
	assert.Equal(t, []byte{0x2c, 0x01}, reg)

	require.NoError(t, e.SetParameter("/Audio/Core/volume", "301"))
	require.NoError(t, e.SetAutoSync(true))
	assert.Equal(t, before+2, mem.Writes("vol"))
}

func TestSyncPullBackReadsBackendState(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)
	mem := coreBackend(t, e)
	mem.Poke("vol", []byte{0x10, 0x00})

	// push happens first, so the poked value is overwritten
	require.NoError(t, e.Sync(true))
	v, err := e.GetParameter("/Audio/Core/volume")
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}

func TestSyncFailureIsReported(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)
	mem := coreBackend(t, e)
	require.NoError(t, e.SetTuningMode(true))
	mem.SetFault("vol", assert.AnError)

	err := e.SetParameter("/Audio/Core/volume", "1")
	var syncErr *syncer.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Len(t, syncErr.Messages, 1)

	v, err := e.GetParameter("/Audio/Core/volume")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestDomainManagement(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)

	require.NoError(t, e.CreateDomain("Eq"))
	assert.ErrorIs(t, e.CreateDomain("Eq"), domain.ErrDuplicate)
	require.NoError(t, e.AddElement("Eq", "/Audio/Core/eq"))
	assert.ErrorIs(t, e.AddElement("Volume", "/Audio/Core/eq/1"), domain.ErrElementOwned)
	assert.True(t, parameter.IsNotFound(e.AddElement("Eq", "/Audio/Core/nope")))

	require.NoError(t, e.CreateConfiguration("Eq", "Flat"))
	require.NoError(t, e.SaveConfiguration("Eq", "Flat"))
	settings, err := e.ExportSettings("Eq", "Flat")
	require.NoError(t, err)
	require.Len(t, settings, 3)
	assert.Equal(t, domain.Setting{Path: "/Audio/Core/eq/2/band", Value: "0"}, settings[2])

	require.NoError(t, e.SetConfigurationRule("Eq", "Flat", "Mode Is Media"))
	rule, err := e.ConfigurationRule("Eq", "Flat")
	require.NoError(t, err)
	assert.Equal(t, "Mode Is Media", rule)
	assert.ErrorIs(t, e.SetConfigurationRule("Eq", "Flat", "Mode Is Radio"), criteria.ErrUnknownValue)
	require.NoError(t, e.SetConfigurationRule("Eq", "Flat", ""))
	rule, err = e.ConfigurationRule("Eq", "Flat")
	require.NoError(t, err)
	assert.Equal(t, "<none>", rule)

	confs, err := e.Configurations("Volume")
	require.NoError(t, err)
	assert.Equal(t, []string{"Loud", "Quiet *"}, confs)

	elements, err := e.DomainElements("Eq")
	require.NoError(t, err)
	assert.Equal(t, []string{"/Audio/Core/eq"}, elements)
	require.NoError(t, e.RemoveElement("Eq", "Audio/Core/eq"))
	elements, err = e.DomainElements("Eq")
	require.NoError(t, err)
	assert.Empty(t, elements)

	require.NoError(t, e.DeleteConfiguration("Eq", "Flat"))
	require.NoError(t, e.DeleteDomain("Eq"))
	assert.ErrorIs(t, e.DeleteDomain("Eq"), domain.ErrUnknownDomain)
}

func TestRestoreAndImportRequireTuning(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)

	assert.ErrorIs(t, e.RestoreConfiguration("Volume", "Loud"), ErrTuningRequired)
	assert.ErrorIs(t, e.ImportSettings(nil), ErrTuningRequired)

	require.NoError(t, e.SetTuningMode(true))
	require.NoError(t, e.RestoreConfiguration("Volume", "Loud"))
	v, err := e.GetParameter("/Audio/Core/gain")
	require.NoError(t, err)
	assert.Equal(t, "90", v)

	require.NoError(t, e.ImportSettings([]domain.Setting{{Path: "/Audio/Core/gain", Value: "7"}}))
	current, err := e.ExportSettings("Volume", "")
	require.NoError(t, err)
	assert.Equal(t, []domain.Setting{{Path: "/Audio/Core/gain", Value: "7"}}, current)
}

func TestIntrospection(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)

	size, err := e.ElementSize("/Audio/Core/eq")
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	b, err := e.ElementBytes("/Audio/Core/gain")
	require.NoError(t, err)
	assert.Equal(t, "14", b)

	params, err := e.ListParameters("/Audio/Core/eq")
	require.NoError(t, err)
	assert.Equal(t, []string{"/Audio/Core/eq/0/band", "/Audio/Core/eq/1/band", "/Audio/Core/eq/2/band"}, params)

	children, err := e.ListElements("/Audio/Core")
	require.NoError(t, err)
	assert.Len(t, children, 3)
	assert.True(t, strings.HasPrefix(children[0], "gain ["))

	props, err := e.Properties("/Audio/Core/gain")
	require.NoError(t, err)
	assert.Contains(t, props, "Path: /Audio/Core/gain")

	dump, err := e.DumpElement("/Audio/Core")
	require.NoError(t, err)
	assert.Contains(t, dump, "gain [")
	assert.Contains(t, dump, "= 20")

	_, err = e.GetParameter("/Audio/Core/eq")
	assert.ErrorIs(t, err, parameter.ErrNotParameter)

	st := e.Status()
	assert.Equal(t, "Audio", st.System)
	assert.Equal(t, "Normal", st.Criteria["Mode"])
	assert.Equal(t, "Active(Quiet)", st.Domains["Volume"])
	assert.Equal(t, true, e.StatusMap()["auto_sync"])
}

func TestExportDocumentReloads(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t)
	require.NoError(t, e.SetCriterionState("Mode", "Media"))

	doc, err := e.ExportDocument()
	require.NoError(t, err)
	crit, domains, err := loadSettings(parse(t, string(doc)))
	require.NoError(t, err)
	c, err := crit.Get("Mode")
	require.NoError(t, err)
	assert.Equal(t, "Media", c.FormattedState())
	d, err := domains.Get("Volume")
	require.NoError(t, err)
	assert.Len(t, d.Configurations(), 2)
}

func TestLoadRejectsBadInputs(t *testing.T) {
	testlog.Start(t)
	reg := syncer.NewRegistry()
	require.NoError(t, reg.Register(syncer.MemoryType, syncer.NewMemoryBackend))

	_, err := Load(Sources{}, reg, DefaultOptions())
	assert.ErrorIs(t, err, ErrBadSettings)

	_, err = Load(Sources{Structure: parse(t, testStructure), Settings: parse(t, "tag: Other\n")}, reg, DefaultOptions())
	assert.ErrorIs(t, err, ErrBadSettings)

	badElement := strings.Replace(testSettings, "Path: /Audio/Core/gain}", "Path: /Audio/Core/missing}", 1)
	_, err = Load(Sources{Structure: parse(t, testStructure), Settings: parse(t, badElement)}, reg, DefaultOptions())
	assert.True(t, parameter.IsNotFound(err))
}

const pairStructure = `
tag: SystemClass
attrs: {Name: Audio}
children:
  - tag: Subsystem
    attrs: {Name: Core, Type: Memory}
    children:
      - tag: InstanceDefinition
        children:
          - {tag: IntegerParameter, attrs: {Name: left, Size: 8, Default: "3"}}
          - {tag: IntegerParameter, attrs: {Name: right, Size: 8, Default: "7"}}
`

const pairSettings = `
tag: ParameterSettings
children:
  - tag: SelectionCriteria
    children:
      - {tag: SelectionCriterion, attrs: {Name: Mode, Type: Exclusive, Values: "Normal,Media", Default: Normal}}
  - tag: ConfigurableDomains
    children:
      - tag: ConfigurableDomain
        attrs: {Name: Pair}
        children:
          - tag: ConfigurableElements
            children:
              - {tag: ConfigurableElement, attrs: {Path: /Audio/Core/left}}
              - {tag: ConfigurableElement, attrs: {Path: /Audio/Core/right}}
          - tag: Configuration
            attrs: {Name: Broken}
            children:
              - {tag: SelectionCriterionRule, attrs: {SelectionCriterion: Mode, MatchesWhen: Is, Value: Media}}
              - tag: Settings
                children:
                  - {tag: Setting, attrs: {Path: /Audio/Core/left, Value: "10"}}
                  - {tag: Setting, attrs: {Path: /Audio/Core/right, Value: "bad"}}
`

func TestApplyStopsAtRejectedValueAndKeepsEarlierWrites(t *testing.T) {
	testlog.Start(t)
	reg := syncer.NewRegistry()
	require.NoError(t, reg.Register(syncer.MemoryType, syncer.NewMemoryBackend))
	logger := testlog.Logger(t)
	opts := DefaultOptions()
	opts.Logger = &logger
	e, err := Load(Sources{Structure: parse(t, pairStructure), Settings: parse(t, pairSettings)}, reg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	assert.Equal(t, []string{"Pair: Inactive"}, e.Domains())

	err = e.SetCriterionState("Mode", "Media")
	require.Error(t, err)
	var applyErr *domain.ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, "/Audio/Core/right", applyErr.Path)
	assert.Equal(t, "Broken", applyErr.Configuration)
	var valueErr *parameter.ValueError
	assert.ErrorAs(t, err, &valueErr)
	assert.ErrorIs(t, err, parameter.ErrValue)

	left, err := e.GetParameter("/Audio/Core/left")
	require.NoError(t, err)
	assert.Equal(t, "10", left)
	right, err := e.GetParameter("/Audio/Core/right")
	require.NoError(t, err)
	assert.Equal(t, "7", right)
	assert.Equal(t, []string{"Pair: Inactive"}, e.Domains())

	// the written pair still reached the backend
	regBytes, ok := coreBackend(t, e).Register("/Audio/Core")
	require.True(t, ok)
	assert.Equal(t, []byte{10, 7}, regBytes)
}
