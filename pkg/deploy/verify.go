package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/modelctl/pkg/cluster"
	"github.com/cuemby/modelctl/pkg/health"
	"github.com/cuemby/modelctl/pkg/types"
)

// verifyHealth probes the health path behind the model's route once.
// Models share routes by family, so several model types probe the same host.
func (o *Orchestrator) verifyHealth(ctx context.Context, r *run) (stageResult, error) {
	if r.req.DryRun {
		return skipped("no endpoint to probe in dry run"), nil
	}

	route := r.profile.Route
	host, err := o.opts.Cluster.RouteHost(ctx, r.req.Namespace, route)
	if errors.Is(err, cluster.ErrNotFound) {
		return succeeded("health check not run", newStageError(types.StageHealth, KindRouteNotFound, nil,
			"route %s not found in %s", route, r.req.Namespace)), nil
	}
	if err != nil {
		return stageResult{}, newStageError(types.StageHealth, KindHealthCheckFailed, err,
			"failed to resolve route %s", route)
	}

	prober := o.opts.Prober
	if prober == nil {
		prober = health.NewHTTPProber(r.req.Timeout())
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.req.Timeout())
	defer cancel()

	url := health.ProbeURL(o.opts.ProbeScheme, host, o.opts.HealthPath)
	result := prober.Probe(probeCtx, url)
	r.logger.Debug().
		Str("url", url).
		Int("status", result.StatusCode).
		Dur("duration", result.Duration).
		Msg("Health probe")

	if !result.Healthy {
		return stageResult{}, newStageError(types.StageHealth, KindHealthCheckFailed, nil,
			"%s: %s", url, result.Message)
	}
	return succeeded(fmt.Sprintf("%s: %s", url, result.Message)), nil
}
