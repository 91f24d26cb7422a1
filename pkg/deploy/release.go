package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/modelctl/pkg/release"
	"github.com/cuemby/modelctl/pkg/storage"
	"github.com/cuemby/modelctl/pkg/types"
)

// deployRelease builds the release spec and submits it. Under dry run the
// release manager only renders and validates; its output is kept verbatim.
func (o *Orchestrator) deployRelease(ctx context.Context, r *run) (stageResult, error) {
	spec, err := release.BuildSpec(r.req, r.profile, release.Options{
		ChartDir:             o.opts.ChartDir,
		ValuesDir:            o.opts.ValuesDir,
		AcceleratorResource:  o.opts.AcceleratorResource,
		EnvironmentOverrides: o.opts.EnvironmentOverrides,
		Extra:                o.opts.Extra,
	})
	if err != nil {
		return stageResult{}, newStageError(types.StageRelease, KindReleaseSubmissionFailed, err,
			"failed to build release for %s", r.req.ModelType)
	}
	r.outcome.Release = &spec

	var warnings []*StageError
	if spec.DefaultValues {
		warnings = append(warnings, valuesWarning(r.req.Environment, spec.ValuesFile))
	}

	r.logger.Debug().
		Str("release", spec.Name).
		Str("chart", spec.Chart).
		Str("values", spec.ValuesFile).
		Strs("overrides", spec.OverrideList()).
		Msg("Release spec")

	result, err := o.opts.Releases.Submit(ctx, spec)
	r.outcome.Output = result.Output
	if err != nil {
		se := newStageError(types.StageRelease, KindReleaseSubmissionFailed, err,
			"failed to submit release %s", spec.Name)
		se.Detail = strings.TrimSpace(result.Output)
		return stageResult{}, se
	}

	if spec.DryRun {
		if out := strings.TrimSpace(result.Output); out != "" {
			r.logger.Info().Msg("Release manager output:\n" + out)
		}
		res := skipped(fmt.Sprintf("validated release %s (%d overrides)", spec.Name, len(spec.Overrides)))
		res.warnings = warnings
		return res, nil
	}

	message := "submitted release " + spec.Name
	if o.opts.Store != nil {
		if rev, err := o.recordRelease(r, spec); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to record release")
		} else {
			message = fmt.Sprintf("%s (revision %d)", message, rev)
		}
	}
	return succeeded(message, warnings...), nil
}

func (o *Orchestrator) recordRelease(r *run, spec release.Spec) (int, error) {
	fingerprint, err := spec.Fingerprint()
	if err != nil {
		return 0, err
	}
	rec, err := o.opts.Store.RecordRelease(&storage.ReleaseRecord{
		Name:        spec.Name,
		Namespace:   spec.Namespace,
		ModelType:   string(r.req.ModelType),
		Environment: string(r.req.Environment),
		Chart:       spec.Chart,
		Fingerprint: fingerprint,
		LastRunID:   r.outcome.RunID,
		UpdatedAt:   o.opts.Now(),
	})
	if err != nil {
		return 0, err
	}
	return rec.Revision, nil
}

func valuesWarning(env types.Environment, valuesFile string) *StageError {
	if valuesFile == "" {
		return newStageError(types.StageRelease, KindEnvironmentOverridesMissing, nil,
			"no values-%s.yaml or values.yaml found; only built-in overrides apply", env)
	}
	return newStageError(types.StageRelease, KindEnvironmentOverridesMissing, nil,
		"no values-%s.yaml; using default values file %s", env, valuesFile)
}
