package config

import (
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/docweave/docweave/internal/transform"
)

// Build binds a parsed PipelineDocument into a runnable Pipeline: every
// source and output kind is resolved through the package-level registries
// (populated by the concrete source/output packages' init() functions);
// every transformation kind is bound directly against the packages config
// already depends on (spec §6.1).
func Build(doc *PipelineDocument, metrics *pipeline.Metrics) (*pipeline.Pipeline, error) {
	pl := &pipeline.Pipeline{Metrics: metrics}

	for _, raw := range doc.Sources {
		src, err := BuildSource(raw.Kind, raw.Config)
		if err != nil {
			return nil, err
		}
		pl.Sources = append(pl.Sources, src)
	}

	env := transform.NewEnv()
	for _, raw := range doc.Transformations {
		step, err := buildStep(raw.Kind, raw.Config, env)
		if err != nil {
			return nil, err
		}
		pl.Steps = append(pl.Steps, step)
	}

	for _, raw := range doc.Outputs {
		out, err := BuildOutput(raw.Kind, raw.Config)
		if err != nil {
			return nil, err
		}
		pl.Outputs = append(pl.Outputs, out)
	}

	return pl, nil
}
