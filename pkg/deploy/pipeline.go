package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cuemby/modelctl/pkg/cluster"
	"github.com/cuemby/modelctl/pkg/config"
	"github.com/cuemby/modelctl/pkg/health"
	"github.com/cuemby/modelctl/pkg/log"
	"github.com/cuemby/modelctl/pkg/metrics"
	"github.com/cuemby/modelctl/pkg/release"
	"github.com/cuemby/modelctl/pkg/storage"
	"github.com/cuemby/modelctl/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults for Options left unset
const (
	DefaultPollInterval = 5 * time.Second
	DefaultLogTailLines = 100
	DefaultLogTimeout   = 30 * time.Second
)

// invalidLabel replaces model and environment labels of runs that failed to resolve
const invalidLabel = "invalid"

// DefaultRequiredTools are the external commands checked before deploying
var DefaultRequiredTools = []string{"kubectl", "helm", "jq"}

// Options configures an Orchestrator
type Options struct {
	Cluster  cluster.Client
	Releases release.Manager

	// Prober overrides the HTTP prober built from the request timeout
	Prober health.Prober

	// Tools locates required commands; defaults to the PATH
	Tools ToolLocator

	// Credentials locates the session credential; defaults to cluster.Credentials
	Credentials func(explicit string) (string, error)

	Kubeconfig    string
	RequiredTools []string

	// Release inputs
	ChartDir             string
	ValuesDir            string
	EnvironmentOverrides map[types.Environment]map[string]string
	Extra                map[string]string

	// Policy is the access-control manifest applied to the namespace
	Policy []byte

	GPUNodeSelector     string
	AcceleratorResource string

	HealthPath   string
	ProbeScheme  string
	PollInterval time.Duration
	LogTailLines int64

	// Store records runs and releases when set
	Store storage.Store

	// LogPath is reported in the outcome
	LogPath string

	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

// Orchestrator runs the deployment pipeline
type Orchestrator struct {
	resolver *config.Resolver
	opts     Options
}

// New creates an orchestrator. Unset options take their defaults.
func New(resolver *config.Resolver, opts Options) *Orchestrator {
	if opts.Tools == nil {
		opts.Tools = PathLocator{}
	}
	if opts.Credentials == nil {
		opts.Credentials = cluster.Credentials
	}
	if opts.RequiredTools == nil {
		opts.RequiredTools = DefaultRequiredTools
	}
	if opts.Policy == nil {
		opts.Policy = config.DefaultPolicy()
	}
	if opts.GPUNodeSelector == "" {
		opts.GPUNodeSelector = config.DefaultGPUNodeSelector
	}
	if opts.AcceleratorResource == "" {
		opts.AcceleratorResource = config.DefaultAcceleratorResource
	}
	if opts.HealthPath == "" {
		opts.HealthPath = config.DefaultHealthPath
	}
	if opts.ProbeScheme == "" {
		opts.ProbeScheme = config.DefaultProbeScheme
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.LogTailLines <= 0 {
		opts.LogTailLines = DefaultLogTailLines
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{resolver: resolver, opts: opts}
}

// run is the state shared by the stages of one invocation
type run struct {
	req     types.DeploymentRequest
	profile types.ModelProfile
	outcome *Outcome
	logger  zerolog.Logger
	timer   *metrics.Timer
}

// stageResult is what a stage that did not fail reports
type stageResult struct {
	status   types.StageStatus
	message  string
	warnings []*StageError
}

func succeeded(message string, warnings ...*StageError) stageResult {
	return stageResult{status: types.StatusSucceeded, message: message, warnings: warnings}
}

func skipped(message string) stageResult {
	return stageResult{status: types.StatusSkippedDryRun, message: message}
}

type stage struct {
	name types.StageName
	fn   func(ctx context.Context, r *run) (stageResult, error)
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{types.StagePrerequisites, o.checkPrerequisites},
		{types.StageResourceAudit, o.auditResources},
		{types.StageNamespace, o.provisionNamespace},
		{types.StageRelease, o.deployRelease},
		{types.StageRollout, o.monitorRollout},
		{types.StageHealth, o.verifyHealth},
	}
}

// Run executes the pipeline for params. Stages run strictly in order and
// the first fatal finding stops the run. The returned outcome is never nil.
func (o *Orchestrator) Run(ctx context.Context, params config.Params) *Outcome {
	runID := uuid.New().String()
	logger := log.WithRunID(runID)

	out := &Outcome{
		RunID:     runID,
		LogPath:   o.opts.LogPath,
		StartedAt: o.opts.Now(),
	}
	r := &run{outcome: out, logger: logger, timer: metrics.NewTimer()}

	// Resolve is a stage of its own so bad input shows up in the report
	idx := out.begin(types.StageResolve, o.opts.Now())
	timer := metrics.NewTimer()
	req, profile, err := o.resolver.Resolve(params)
	timer.ObserveDurationVec(metrics.StageDuration, string(types.StageResolve))
	if err != nil {
		out.Request = types.DeploymentRequest{
			ModelType:      types.ModelType(params.ModelType),
			Namespace:      params.Namespace,
			Environment:    types.Environment(params.Environment),
			DryRun:         params.DryRun,
			TimeoutSeconds: params.TimeoutSeconds,
		}
		o.fail(r, idx, resolveError(err))
		return o.finishRun(r)
	}
	out.Request = req
	out.Profile = &profile
	r.req = req
	r.profile = profile
	r.logger = logger.With().
		Str("model_type", string(req.ModelType)).
		Str("environment", string(req.Environment)).
		Bool("dry_run", req.DryRun).
		Logger()
	o.complete(r, idx, succeeded("resolved "+string(req.ModelType)+" for "+string(req.Environment)))

	for _, s := range o.stages() {
		idx := out.begin(s.name, o.opts.Now())
		logger := r.logger.With().Str("stage", string(s.name)).Logger()
		logger.Info().Msg("Stage started")

		timer := metrics.NewTimer()
		res, err := s.fn(ctx, r)
		timer.ObserveDurationVec(metrics.StageDuration, string(s.name))

		if err != nil {
			se := asStageError(s.name, err)
			if se.Fatal() {
				o.fail(r, idx, se)
				break
			}
			// A bare warning returned as an error still completes the stage
			res = succeeded(se.Message, se)
		}
		o.complete(r, idx, res)
	}

	return o.finishRun(r)
}

func (o *Orchestrator) complete(r *run, idx int, res stageResult) {
	e := r.outcome.Entries[idx]
	logger := r.logger.With().Str("stage", string(e.Stage)).Logger()

	for _, w := range res.warnings {
		w.Stage = e.Stage
		metrics.StageWarnings.WithLabelValues(string(e.Stage), string(w.Kind)).Inc()
		logger.Warn().Str("kind", string(w.Kind)).Msg(w.Message)
	}

	r.outcome.finish(idx, res.status, res.message, res.warnings, nil, o.opts.Now())
	metrics.StageResults.WithLabelValues(string(e.Stage), string(res.status)).Inc()

	if res.status == types.StatusSkippedDryRun {
		logger.Info().Msgf("Stage skipped (dry run): %s", res.message)
		return
	}
	logger.Info().Msgf("Stage succeeded: %s", res.message)
}

func (o *Orchestrator) fail(r *run, idx int, se *StageError) {
	e := r.outcome.Entries[idx]
	se.Stage = e.Stage

	r.outcome.finish(idx, types.StatusFailed, se.Message, nil, se, o.opts.Now())
	metrics.StageResults.WithLabelValues(string(e.Stage), string(types.StatusFailed)).Inc()

	event := r.logger.Error().Str("stage", string(e.Stage)).Str("kind", string(se.Kind))
	if se.Err != nil {
		event = event.Err(se.Err)
	}
	event.Msg(se.Message)
	for _, cause := range se.Causes {
		r.logger.Error().Str("stage", string(e.Stage)).Str("kind", string(cause.Kind)).Msg(cause.Message)
	}
	if se.Detail != "" {
		r.logger.Error().Str("stage", string(e.Stage)).Msg("Diagnostics:\n" + se.Detail)
	}
}

func (o *Orchestrator) finishRun(r *run) *Outcome {
	out := r.outcome
	out.FinishedAt = o.opts.Now()

	result := "succeeded"
	if !out.Succeeded() {
		result = "failed"
	}
	// Unresolved input is not a valid label value
	modelLabel, envLabel := invalidLabel, invalidLabel
	if out.Profile != nil {
		modelLabel, envLabel = string(out.Request.ModelType), string(out.Request.Environment)
	}
	metrics.RunsTotal.WithLabelValues(modelLabel, envLabel, result).Inc()
	r.timer.ObserveDuration(metrics.RunDuration)

	if o.opts.Store != nil {
		if err := o.opts.Store.SaveRun(runRecord(out)); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to record run history")
		}
	}
	return out
}

func runRecord(out *Outcome) *storage.RunRecord {
	rec := &storage.RunRecord{
		ID:          out.RunID,
		ModelType:   string(out.Request.ModelType),
		Environment: string(out.Request.Environment),
		Namespace:   out.Request.Namespace,
		DryRun:      out.Request.DryRun,
		Succeeded:   out.Succeeded(),
		Warnings:    len(out.Warnings()),
		LogPath:     out.LogPath,
		StartedAt:   out.StartedAt,
		FinishedAt:  out.FinishedAt,
	}
	if out.Err != nil {
		rec.FailedStage = string(out.Err.Stage)
		rec.Error = out.Err.Error()
	}
	if report, err := json.Marshal(out); err == nil {
		rec.Report = report
	}
	return rec
}

func resolveError(err error) *StageError {
	var missing *config.MissingProfileError
	if errors.As(err, &missing) {
		return newStageError(types.StageResolve, KindInternal, err, "model catalog is incomplete")
	}

	se := newStageError(types.StageResolve, KindValidation, nil, "%s", err.Error())
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		for _, issue := range verr.Issues {
			se.Causes = append(se.Causes, &StageError{
				Kind:     Kind(issue.Code),
				Stage:    types.StageResolve,
				Severity: types.SeverityFatal,
				Message:  issue.Message,
			})
		}
	}
	return se
}

func asStageError(stage types.StageName, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return newStageError(stage, KindInternal, err, "unexpected error")
}
