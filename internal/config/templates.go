package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter file: "config", "structure" or "settings".
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "config":
		return configTemplate, nil
	case "structure":
		return structureTemplate, nil
	case "settings":
		return settingsTemplate, nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const configTemplate = `structure = "structure.yaml"
settings = "settings.yaml"

[server]
host = "127.0.0.1"
port = 5000
read_timeout = "5m"

[plugins]
folder = ""
names = ["Memory", "Badger"]

[badger]
path = "paramctl.db"
in_memory = false
sync_writes = true

[engine]
tuning_allowed = true
auto_sync = true

[admin]
addr = "127.0.0.1:9090"
`

const structureTemplate = `tag: SystemClass
attrs: {Name: Audio}
children:
  - tag: Subsystem
    attrs: {Name: Codec, Type: Memory}
    children:
      - tag: ComponentLibrary
        children:
          - tag: ComponentType
            attrs: {Name: Channel}
            children:
              - {tag: IntegerParameter, attrs: {Name: gain, Size: 8, Signed: true, Min: -96, Max: 12, Unit: dB}}
              - {tag: BooleanParameter, attrs: {Name: mute}}
      - tag: InstanceDefinition
        children:
          - tag: IntegerParameter
            attrs: {Name: volume, Size: 16, Mapping: "Register:vol"}
            children:
              - {tag: LinearAdaptation, attrs: {SlopeNumerator: 10, SlopeDenominator: 1}}
          - tag: EnumParameter
            attrs: {Name: route, Default: Speaker}
            children:
              - {tag: ValuePair, attrs: {Literal: Speaker, Numerical: 0}}
              - {tag: ValuePair, attrs: {Literal: Headset, Numerical: 1}}
          - {tag: Component, attrs: {Name: channels, Type: Channel, ArrayLength: 2}}
  - tag: Subsystem
    attrs: {Name: Persist, Type: Badger}
    children:
      - tag: InstanceDefinition
        children:
          - {tag: IntegerParameter, attrs: {Name: boots, Size: 32, Mapping: "Key:boots"}}
`

const settingsTemplate = `tag: ParameterSettings
children:
  - tag: SelectionCriteria
    children:
      - {tag: SelectionCriterion, attrs: {Name: Mode, Type: Exclusive, Values: "Normal,Media", Default: Normal}}
      - {tag: SelectionCriterion, attrs: {Name: Output, Type: Inclusive, Values: "Speaker,Headset"}}
  - tag: ConfigurableDomains
    children:
      - tag: ConfigurableDomain
        attrs: {Name: Routing}
        children:
          - tag: ConfigurableElements
            children:
              - {tag: ConfigurableElement, attrs: {Path: /Audio/Codec/route}}
          - tag: Configuration
            attrs: {Name: Headset}
            children:
              - {tag: SelectionCriterionRule, attrs: {SelectionCriterion: Output, MatchesWhen: Includes, Value: Headset}}
              - tag: Settings
                children:
                  - {tag: Setting, attrs: {Path: /Audio/Codec/route, Value: Headset}}
          - tag: Configuration
            attrs: {Name: Speaker}
            children:
              - tag: Settings
                children:
                  - {tag: Setting, attrs: {Path: /Audio/Codec/route, Value: Speaker}}
      - tag: ConfigurableDomain
        attrs: {Name: Volume}
        children:
          - tag: ConfigurableElements
            children:
              - {tag: ConfigurableElement, attrs: {Path: /Audio/Codec/volume}}
          - tag: Configuration
            attrs: {Name: Media}
            children:
              - {tag: SelectionCriterionRule, attrs: {SelectionCriterion: Mode, MatchesWhen: Is, Value: Media}}
              - tag: Settings
                children:
                  - {tag: Setting, attrs: {Path: /Audio/Codec/volume, Value: "80"}}
          - tag: Configuration
            attrs: {Name: Default}
            children:
              - tag: Settings
                children:
                  - {tag: Setting, attrs: {Path: /Audio/Codec/volume, Value: "40"}}
`
