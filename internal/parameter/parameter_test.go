package parameter

import (
	"errors"
	"testing"

	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/syncer"
	"github.com/danmuck/paramctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const audioStructure = `
tag: SystemClass
attrs: {Name: Audio}
children:
  - tag: Subsystem
    attrs: {Name: Core, Type: Memory}
    children:
      - tag: ComponentLibrary
        children:
          - tag: ComponentType
            attrs: {Name: Channel}
            children:
              - tag: IntegerParameter
                attrs: {Name: gain, Size: 16, Signed: true, Min: -96, Max: 12}
              - tag: BooleanParameter
                attrs: {Name: mute, Default: "1"}
      - tag: InstanceDefinition
        children:
          - tag: IntegerParameter
            attrs: {Name: width, Size: 8, Default: "16"}
          - tag: ComputedSizeParameter
            attrs: {Name: sample, Parameter: width}
          - tag: IntegerParameter
            attrs: {Name: volume, Size: 16, Mapping: "Register:vol"}
            children:
              - tag: LinearAdaptation
                attrs: {SlopeNumerator: 2, SlopeDenominator: 1, Offset: 3}
          - tag: EnumParameter
            attrs: {Name: mode, Size: 8, Default: Stereo}
            children:
              - {tag: ValuePair, attrs: {Literal: Mono, Numerical: 1}}
              - {tag: ValuePair, attrs: {Literal: Stereo, Numerical: 2}}
          - tag: ParameterBlock
            attrs: {Name: eq, ArrayLength: 3}
            children:
              - {tag: IntegerParameter, attrs: {Name: band, Size: 8}}
          - tag: ParameterBlock
            attrs: {Name: misc}
            children:
              - {tag: IntegerParameter, attrs: {Name: level, Size: 8}}
          - tag: Component
            attrs: {Name: channels, Type: Channel, ArrayLength: 2, Mapping: "Register:channels"}
          - tag: BitParameterBlock
            attrs: {Name: flags, Size: 8}
            children:
              - {tag: BitParameter, attrs: {Name: enable, Pos: 0}}
              - {tag: BitParameter, attrs: {Name: level, Pos: 4, Size: 3, Max: 5}}
  - tag: Subsystem
    attrs: {Name: Virt, Type: Virtual}
    children:
      - tag: InstanceDefinition
        children:
          - {tag: IntegerParameter, attrs: {Name: scratch, Size: 32}}
`

func testBackends(t *testing.T) *syncer.Registry {
	t.Helper()
	reg := syncer.NewRegistry()
	require.NoError(t, reg.Register(syncer.MemoryType, syncer.NewMemoryBackend))
	return reg
}

func loadDefinition(t *testing.T, doc string) (*SystemDefinition, error) {
	t.Helper()
	root, err := description.ParseYAML([]byte(doc))
	require.NoError(t, err)
	return LoadSystem(root, NewRegistry())
}

func buildAudio(t *testing.T) *Structure {
	t.Helper()
	def, err := loadDefinition(t, audioStructure)
	require.NoError(t, err)
	s, err := Build(def, testBackends(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuildLaysOutRegionsInDeclarationOrder(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)

	cases := []struct {
		path         string
		offset, size int
	}{
		{"/Audio/Core/width", 0, 1},
		{"/Audio/Core/sample", 1, 2},
		{"/Audio/Core/volume", 3, 2},
		{"/Audio/Core/mode", 5, 1},
		{"/Audio/Core/eq", 6, 3},
		{"/Audio/Core/misc", 9, 1},
		{"/Audio/Core/channels", 10, 6},
		{"/Audio/Core/channels/1/gain", 13, 2},
		{"/Audio/Core/flags", 16, 1},
		{"/Audio/Core", 0, 17},
		{"/Audio/Virt/scratch", 17, 4},
		{"/Audio", 0, 21},
	}
	for _, tc := range cases {
		inst, err := s.Resolve(tc.path)
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.offset, inst.Offset(), tc.path)
		assert.Equal(t, tc.size, inst.Size(), tc.path)
	}
	assert.Equal(t, 21, s.Blackboard().Size())
}

func TestBlockArrayExpansion(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)

	eq, err := s.Resolve("/Audio/Core/eq")
	require.NoError(t, err)
	assert.True(t, eq.HasDynamicChildren())
	require.Equal(t, 3, eq.NbChildren())
	for i, name := range []string{"0", "1", "2"} {
		assert.Equal(t, name, eq.Child(i).Name())
		_, ok := eq.Child(i).FindChild("band")
		assert.True(t, ok)
	}

	misc, err := s.Resolve("/Audio/Core/misc")
	require.NoError(t, err)
	assert.False(t, misc.HasDynamicChildren())
	require.Equal(t, 1, misc.NbChildren())
	assert.Equal(t, "level", misc.Child(0).Name())

	names, err := s.ListElements("/Audio/Core/channels")
	require.NoError(t, err)
	assert.Equal(t, []string{"0 [Component]", "1 [Component]"}, names)

	v, err := s.Get("/Audio/Core/channels/1/mute")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestComputedSizeUsesReferentValue(t *testing.T) {
	testlog.Start(t)
	doc := func(width, ref string) string {
		return `
tag: SystemClass
attrs: {Name: S}
children:
  - tag: Subsystem
    attrs: {Name: Sub, Type: Virtual}
    children:
      - tag: InstanceDefinition
        children:
          - {tag: IntegerParameter, attrs: {Name: bits, Size: 8, Default: "` + width + `"}}
          - {tag: ComputedSizeParameter, attrs: {Name: sized, Parameter: "` + ref + `"}}
`
	}

	for _, tc := range []struct {
		width string
		want  int
	}{{"8", 1}, {"12", 1}, {"24", 3}, {"32", 4}} {
		def, err := loadDefinition(t, doc(tc.width, "bits"))
		require.NoError(t, err)
		s, err := Build(def, syncer.NewRegistry())
		require.NoError(t, err)
		p, err := s.Parameter("/S/Sub/sized")
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.Size(), "width %s", tc.width)
	}

	def, err := loadDefinition(t, doc("16", "/S/Sub/bits"))
	require.NoError(t, err)
	s, err := Build(def, syncer.NewRegistry())
	require.NoError(t, err)
	p, err := s.Parameter("/S/Sub/sized")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size())

	def, err = loadDefinition(t, doc("16", "missing"))
	require.NoError(t, err)
	_, err = Build(def, syncer.NewRegistry())
	require.ErrorIs(t, err, ErrConfig)
	assert.True(t, IsNotFound(err))

	def, err = loadDefinition(t, doc("40", "bits"))
	require.NoError(t, err)
	_, err = Build(def, syncer.NewRegistry())
	assert.ErrorIs(t, err, ErrConfig)

	def, err = loadDefinition(t, doc("4", "bits"))
	require.NoError(t, err)
	_, err = Build(def, syncer.NewRegistry())
	assert.ErrorIs(t, err, ErrConfig)
}

func TestAdaptationAppliesOffsetOnRawSide(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)

	_, err := s.Set("/Audio/Core/volume", "5")
	require.NoError(t, err)
	p, err := s.Parameter("/Audio/Core/volume")
	require.NoError(t, err)
	raw, err := p.Raw(s.Blackboard())
	require.NoError(t, err)
	// 5 * 2 / 1 - 3
	assert.EqualValues(t, 7, raw)

	v, err := s.Get("/Audio/Core/volume")
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	_, err = s.Set("/Audio/Core/volume", "2.5")
	require.NoError(t, err)
	raw, err = p.Raw(s.Blackboard())
	require.NoError(t, err)
	assert.EqualValues(t, 2, raw)
}

func TestAdaptationRoundTrip(t *testing.T) {
	testlog.Start(t)
	for _, a := range []*LinearAdaptation{
		{SlopeNumerator: 2, SlopeDenominator: 1, Offset: 3},
		{SlopeNumerator: 3, SlopeDenominator: 7, Offset: -5},
		{SlopeNumerator: 10, SlopeDenominator: 1, Offset: 0},
	} {
		it := NewIntegerType("v")
		it.size = 16
		it.min, it.max = naturalRange(false, 16)
		it.adaptation = a
		for raw := uint32(0); raw < 2000; raw++ {
			got, err := it.AsInteger(it.AsString(raw))
			require.NoError(t, err)
			require.Equal(t, raw, got, "raw %d through %+v", raw, *a)
		}
	}
}

func TestZeroSlopeIsConfigError(t *testing.T) {
	testlog.Start(t)
	_, err := NewLinearAdaptation(0, 1, 0)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = loadDefinition(t, `
tag: SystemClass
attrs: {Name: S}
children:
  - tag: Subsystem
    attrs: {Name: Sub, Type: Virtual}
    children:
      - tag: InstanceDefinition
        children:
          - tag: IntegerParameter
            attrs: {Name: p, Size: 8}
            children:
              - {tag: LinearAdaptation, attrs: {SlopeDenominator: 0}}
`)
	require.ErrorIs(t, err, ErrConfig)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Path, "IntegerParameter[p]")
}

func TestSignedIntegerAndRangeChecks(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)
	const gain = "/Audio/Core/channels/0/gain"

	_, err := s.Set(gain, "-3")
	require.NoError(t, err)
	v, err := s.Get(gain)
	require.NoError(t, err)
	assert.Equal(t, "-3", v)
	b, err := s.Bytes(gain)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFD, 0xFF}, b)

	_, err = s.Set(gain, "0xFFF0")
	require.NoError(t, err)
	v, err = s.Get(gain)
	require.NoError(t, err)
	assert.Equal(t, "-16", v)

	_, err = s.Set(gain, "13")
	require.ErrorIs(t, err, ErrValue)
	var valErr *ValueError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, gain, valErr.Path)
	v, err = s.Get(gain)
	require.NoError(t, err)
	assert.Equal(t, "-16", v)

	_, err = s.Set(gain, "ten")
	assert.ErrorIs(t, err, ErrValue)
	_, err = s.Set("/Audio/Core/width", "010")
	require.NoError(t, err)
	v, err = s.Get("/Audio/Core/width")
	require.NoError(t, err)
	assert.Equal(t, "10", v)
}

func TestEnumLiteralsAndNumbers(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)

	v, err := s.Get("/Audio/Core/mode")
	require.NoError(t, err)
	assert.Equal(t, "Stereo", v)

	_, err = s.Set("/Audio/Core/mode", "1")
	require.NoError(t, err)
	v, err = s.Get("/Audio/Core/mode")
	require.NoError(t, err)
	assert.Equal(t, "Mono", v)

	_, err = s.Set("/Audio/Core/mode", "Quad")
	assert.ErrorIs(t, err, ErrValue)
}

func TestBitParametersShareTheirWord(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)

	_, err := s.Set("/Audio/Core/flags/enable", "1")
	require.NoError(t, err)
	_, err = s.Set("/Audio/Core/flags/level", "5")
	require.NoError(t, err)
	b, err := s.Bytes("/Audio/Core/flags")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x51}, b)

	_, err = s.Set("/Audio/Core/flags/level", "6")
	assert.ErrorIs(t, err, ErrValue)

	_, err = s.Set("/Audio/Core/flags/enable", "0")
	require.NoError(t, err)
	v, err := s.Get("/Audio/Core/flags/level")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
}

func TestSyncerResolutionFollowsMappings(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)
	core := s.Subsystems()[0]
	mem := core.Backend().(*syncer.MemoryBackend)

	set, err := s.Set("/Audio/Core/volume", "5")
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	res := set.Sync(s.Blackboard(), false)
	require.NoError(t, res.Err())
	got, ok := mem.Register("vol")
	require.True(t, ok)
	assert.Equal(t, []byte{7, 0}, got)

	set, err = s.SyncerSetFor("/Audio/Core/channels/1/gain")
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	require.NoError(t, set.Sync(s.Blackboard(), false).Err())
	_, ok = mem.Register("channels")
	assert.True(t, ok)

	set, err = s.SyncerSetFor("/Audio/Core")
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	// default, vol, channels and the virtual subsystem
	assert.Equal(t, 4, s.SyncAll().Len())
}

func TestVirtualSubsystemRejectsMapping(t *testing.T) {
	testlog.Start(t)
	def, err := loadDefinition(t, `
tag: SystemClass
attrs: {Name: S}
children:
  - tag: Subsystem
    attrs: {Name: Sub, Type: Virtual}
    children:
      - tag: InstanceDefinition
        children:
          - tag: ParameterBlock
            attrs: {Name: blk, Mapping: "Register:x"}
            children:
              - {tag: IntegerParameter, attrs: {Name: p, Size: 8, Mapping: "Register:y"}}
`)
	require.NoError(t, err)
	_, err = Build(def, syncer.NewRegistry())
	require.ErrorIs(t, err, syncer.ErrMappingRejected)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "/S/Sub/blk", cfgErr.Path)
}

func TestUnknownBackendAndComponentErrors(t *testing.T) {
	testlog.Start(t)
	def, err := loadDefinition(t, audioStructure)
	require.NoError(t, err)
	_, err = Build(def, syncer.NewRegistry())
	assert.ErrorIs(t, err, syncer.ErrUnknownBackend)

	def, err = loadDefinition(t, `
tag: SystemClass
attrs: {Name: S}
children:
  - tag: Subsystem
    attrs: {Name: Sub, Type: Virtual}
    children:
      - tag: ComponentLibrary
        children:
          - tag: ComponentType
            attrs: {Name: Loop}
            children:
              - {tag: Component, attrs: {Name: inner, Type: Loop}}
      - tag: InstanceDefinition
        children:
          - {tag: Component, attrs: {Name: a, Type: Loop}}
          - {tag: Component, attrs: {Name: b, Type: Nope}}
`)
	require.NoError(t, err)
	_, err = Build(def, syncer.NewRegistry())
	assert.ErrorIs(t, err, ErrComponentCycle)
}

func TestLoadRejectsMalformedTypes(t *testing.T) {
	testlog.Start(t)
	for name, body := range map[string]string{
		"size":     `{tag: IntegerParameter, attrs: {Name: p, Size: 12}}`,
		"range":    `{tag: IntegerParameter, attrs: {Name: p, Size: 8, Max: 300}}`,
		"unknown":  `{tag: FloatParameter, attrs: {Name: p}}`,
		"noname":   `{tag: BooleanParameter}`,
		"bitfield": `{tag: BitParameterBlock, attrs: {Name: b, Size: 8}, children: [{tag: BitParameter, attrs: {Name: x, Pos: 6, Size: 3}}]}`,
		"bitwrap":  `{tag: BitParameterBlock, attrs: {Name: b, Size: 8}, children: [{tag: BitParameter, attrs: {Name: x, Pos: "18446744073709551615", Size: 1}}]}`,
		"bitpos":   `{tag: BitParameterBlock, attrs: {Name: b, Size: 8}, children: [{tag: BitParameter, attrs: {Name: x, Pos: 8}}]}`,
		"overlap":  `{tag: BitParameterBlock, attrs: {Name: b, Size: 8}, children: [{tag: BitParameter, attrs: {Name: x, Pos: 0, Size: 2}}, {tag: BitParameter, attrs: {Name: y, Pos: 1}}]}`,
		"enum":     `{tag: EnumParameter, attrs: {Name: e, Size: 8}}`,
		"default":  `{tag: IntegerParameter, attrs: {Name: p, Size: 8, Default: "256"}}`,
	} {
		_, err := loadDefinition(t, `
tag: SystemClass
attrs: {Name: S}
children:
  - tag: Subsystem
    attrs: {Name: Sub, Type: Virtual}
    children:
      - tag: InstanceDefinition
        children:
          - `+body+`
`)
		assert.ErrorIs(t, err, ErrConfig, name)
	}
}

func TestDefinitionDescriptionRoundTrip(t *testing.T) {
	testlog.Start(t)
	def, err := loadDefinition(t, audioStructure)
	require.NoError(t, err)
	first, err := description.MarshalYAML(def.ToDescription())
	require.NoError(t, err)

	again, err := description.ParseYAML(first)
	require.NoError(t, err)
	def2, err := LoadSystem(again, NewRegistry())
	require.NoError(t, err)
	second, err := description.MarshalYAML(def2.ToDescription())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	subs := def2.Subsystems()
	require.Len(t, subs, 2)
	assert.Equal(t, "Memory", subs[0].BackendType())
	require.Len(t, subs[0].Library(), 1)
	assert.Len(t, subs[0].Instances(), 8)
}

func TestIntrospection(t *testing.T) {
	testlog.Start(t)
	s := buildAudio(t)

	props, err := s.Properties("/Audio/Core/volume")
	require.NoError(t, err)
	byKey := make(map[string]string)
	for _, p := range props {
		byKey[p.Key] = p.Value
	}
	assert.Equal(t, "IntegerParameter", byKey["Kind"])
	assert.Equal(t, "3", byKey["Offset"])
	assert.Equal(t, "Register:vol", byKey["Mapping"])
	assert.Equal(t, "2/1+3", byKey["Adaptation"])

	props, err = s.Properties("/Audio/Core/sample")
	require.NoError(t, err)
	assert.Contains(t, props, Property{Key: "SizeFrom", Value: "width"})

	dump, err := s.Dump("/Audio/Core/eq")
	require.NoError(t, err)
	assert.Contains(t, dump, "eq [ParameterBlock]\n  0 [ParameterBlock]\n    band [IntegerParameter] = 0\n")

	params, err := s.Parameters("/Audio/Core/channels")
	require.NoError(t, err)
	assert.Len(t, params, 4)

	_, err = s.Get("/Audio/Core/nope")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "not found")

	_, err = s.Get("/Audio/Core/eq")
	assert.ErrorIs(t, err, ErrNotParameter)
}

func TestUnknownTypeListsKnownTags(t *testing.T) {
	testlog.Start(t)
	_, err := NewRegistry().NewType(description.NewElement("FloatParameter").Set("Name", "p"))
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "unknown element type \"FloatParameter\"")
	assert.Contains(t, err.Error(), "BitParameter, BitParameterBlock, BooleanParameter")
}
