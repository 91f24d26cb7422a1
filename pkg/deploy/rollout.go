package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/modelctl/pkg/cluster"
	"github.com/cuemby/modelctl/pkg/metrics"
	"github.com/cuemby/modelctl/pkg/types"
)

// pollUntil calls condition immediately and then on every tick until it
// returns true or ctx is done. Condition errors do not stop polling.
func pollUntil(ctx context.Context, interval time.Duration, condition func(ctx context.Context) bool) error {
	if condition(ctx) {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if condition(ctx) {
				return nil
			}
		}
	}
}

func describeRollout(s cluster.RolloutStatus, observed bool) string {
	if !observed {
		return "workload not found"
	}
	return fmt.Sprintf("%d/%d updated, %d/%d available", s.UpdatedReplicas, s.DesiredReplicas, s.AvailableReplicas, s.DesiredReplicas)
}

// monitorRollout waits for the workload to converge within the request
// timeout. On timeout it attaches recent pod logs to the failure.
func (o *Orchestrator) monitorRollout(ctx context.Context, r *run) (stageResult, error) {
	if r.req.DryRun {
		return skipped("no workload to monitor in dry run"), nil
	}

	ns, workload := r.req.Namespace, r.profile.Workload
	waitCtx, cancel := context.WithTimeout(ctx, r.req.Timeout())
	defer cancel()

	var (
		last     cluster.RolloutStatus
		observed bool
	)
	err := pollUntil(waitCtx, o.opts.PollInterval, func(ctx context.Context) bool {
		metrics.RolloutPolls.Inc()
		status, err := o.opts.Cluster.RolloutStatus(ctx, ns, workload)
		if err != nil {
			if !errors.Is(err, cluster.ErrNotFound) && ctx.Err() == nil {
				r.logger.Debug().Err(err).Str("workload", workload).Msg("Rollout status unavailable")
			}
			return false
		}
		last, observed = status, true
		r.logger.Debug().Str("workload", workload).Msg(describeRollout(status, true))
		return status.Complete()
	})
	if err != nil {
		se := newStageError(types.StageRollout, KindRolloutTimeout, err,
			"%s/%s not ready after %s (%s)", ns, workload, r.req.Timeout(), describeRollout(last, observed))
		se.Detail = o.logExcerpt(ctx, ns, workload)
		return stageResult{}, se
	}

	message := fmt.Sprintf("%s/%s ready (%s)", ns, workload, describeRollout(last, true))

	endpoints, err := o.opts.Cluster.ReadyEndpoints(ctx, ns, workload)
	switch {
	case err != nil:
		return succeeded(message, newStageError(types.StageRollout, KindNoHealthyEndpoints, err,
			"could not count endpoints of service %s", workload)), nil
	case endpoints == 0:
		return succeeded(message, newStageError(types.StageRollout, KindNoHealthyEndpoints, nil,
			"service %s has no ready endpoints", workload)), nil
	}
	return succeeded(fmt.Sprintf("%s; %d ready endpoint(s)", message, endpoints)), nil
}

// logExcerpt fetches recent pod logs with a fresh deadline, since the
// rollout deadline has already passed. The excerpt is never empty.
func (o *Orchestrator) logExcerpt(ctx context.Context, ns, workload string) string {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultLogTimeout)
	defer cancel()

	logs, err := o.opts.Cluster.PodLogs(logCtx, ns, workload, o.opts.LogTailLines)
	if err != nil {
		return fmt.Sprintf("recent logs of %s/%s unavailable: %v", ns, workload, err)
	}
	if strings.TrimSpace(logs) == "" {
		return fmt.Sprintf("no log output from pods of %s/%s", ns, workload)
	}
	return fmt.Sprintf("recent logs of %s/%s:\n%s", ns, workload, logs)
}
