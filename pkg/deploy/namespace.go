package deploy

import (
	"context"
	"fmt"

	"github.com/cuemby/modelctl/pkg/types"
)

// Labels set on namespaces the orchestrator creates
const (
	LabelManagedBy   = "app.kubernetes.io/managed-by"
	LabelEnvironment = "modelctl.io/environment"
)

// provisionNamespace ensures the namespace exists and (re)applies the
// access policy even when it already did. Under dry run only the existence
// check runs.
func (o *Orchestrator) provisionNamespace(ctx context.Context, r *run) (stageResult, error) {
	ns := r.req.Namespace

	exists, err := o.opts.Cluster.NamespaceExists(ctx, ns)
	if err != nil {
		return stageResult{}, newStageError(types.StageNamespace, KindNamespaceProvisionFailed, err,
			"failed to look up namespace %s", ns)
	}

	if r.req.DryRun {
		action := "would create namespace " + ns
		if exists {
			action = "namespace " + ns + " exists"
		}
		return skipped(fmt.Sprintf("%s; would apply access policy (%d bytes)", action, len(o.opts.Policy))), nil
	}

	action := "namespace " + ns + " exists"
	if !exists {
		labels := map[string]string{
			LabelManagedBy:   "modelctl",
			LabelEnvironment: string(r.req.Environment),
		}
		if err := o.opts.Cluster.CreateNamespace(ctx, ns, labels); err != nil {
			return stageResult{}, newStageError(types.StageNamespace, KindNamespaceProvisionFailed, err,
				"failed to create namespace %s", ns)
		}
		action = "created namespace " + ns
	}

	if err := o.opts.Cluster.ApplyPolicy(ctx, ns, o.opts.Policy); err != nil {
		return stageResult{}, newStageError(types.StageNamespace, KindNamespaceProvisionFailed, err,
			"failed to apply access policy to %s", ns)
	}

	return succeeded(action + "; applied access policy"), nil
}
