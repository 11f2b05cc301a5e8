package config

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// ConfigError reports a configuration document that can't be bound to a
// runnable pipeline: an unknown kind, a malformed schema field, a reference
// that doesn't resolve. Fatal before the pipeline starts (spec §7, category
// 1) — never raised once a run is underway.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// RawKind is one entry of a sources/transformations/outputs list: a kind
// name and its kind-specific config, left as a generic map until Build
// dispatches it to the right decoder (spec §6.1).
type RawKind struct {
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config"`
}

// PipelineDocument is the top-level shape of a configuration document
// (spec §6.1): three ordered lists, applied in declaration order.
type PipelineDocument struct {
	Sources         []RawKind `yaml:"sources"`
	Transformations []RawKind `yaml:"transformations"`
	Outputs         []RawKind `yaml:"outputs"`
}

// ParseDocument unmarshals a configuration document's YAML bytes.
func ParseDocument(data []byte) (*PipelineDocument, error) {
	var doc PipelineDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("parse configuration document: %s", err)}
	}
	if len(doc.Sources) == 0 {
		return nil, &ConfigError{Msg: "configuration document declares no sources"}
	}
	return &doc, nil
}
