package deploy

import (
	"context"
	"fmt"

	"github.com/cuemby/modelctl/pkg/cluster"
	"github.com/cuemby/modelctl/pkg/metrics"
	"github.com/cuemby/modelctl/pkg/types"
	"github.com/samber/lo"
)

// Snapshot summarizes accelerator nodes and storage classes
func Snapshot(nodes []cluster.Node, storageClasses []string) types.ResourceSnapshot {
	return types.ResourceSnapshot{
		GPUNodeCount:          len(nodes),
		AvailableAccelerators: lo.SumBy(nodes, func(n cluster.Node) int64 { return n.Available() }),
		StorageClassCount:     len(storageClasses),
	}
}

// Classify grades a snapshot. Absent infrastructure is fatal; capable
// nodes with no free accelerators only warn, since saturation is transient.
func Classify(s types.ResourceSnapshot) (types.Verdict, *StageError) {
	switch {
	case s.GPUNodeCount == 0:
		return types.VerdictFatal, newStageError(types.StageResourceAudit, KindNoAcceleratorCapacity, nil,
			"no accelerator-capable nodes found")
	case s.StorageClassCount == 0:
		return types.VerdictFatal, newStageError(types.StageResourceAudit, KindNoStorageBackend, nil,
			"no storage classes found")
	case s.AvailableAccelerators <= 0:
		return types.VerdictWarn, newStageError(types.StageResourceAudit, KindAcceleratorsSaturated, nil,
			"%d accelerator-capable node(s) but no unallocated accelerators", s.GPUNodeCount)
	}
	return types.VerdictOK, nil
}

func (o *Orchestrator) auditResources(ctx context.Context, r *run) (stageResult, error) {
	nodes, err := o.opts.Cluster.ListNodes(ctx, o.opts.GPUNodeSelector)
	if err != nil {
		return stageResult{}, newStageError(types.StageResourceAudit, KindInternal, err,
			"failed to list nodes matching %s", o.opts.GPUNodeSelector)
	}
	classes, err := o.opts.Cluster.ListStorageClasses(ctx)
	if err != nil {
		return stageResult{}, newStageError(types.StageResourceAudit, KindInternal, err,
			"failed to list storage classes")
	}

	snapshot := Snapshot(nodes, classes)
	r.outcome.Snapshot = &snapshot
	metrics.AcceleratorNodes.Set(float64(snapshot.GPUNodeCount))
	metrics.AvailableAccelerators.Set(float64(snapshot.AvailableAccelerators))

	r.logger.Debug().
		Int("gpu_nodes", snapshot.GPUNodeCount).
		Int64("available_accelerators", snapshot.AvailableAccelerators).
		Int("storage_classes", snapshot.StorageClassCount).
		Msg("Resource snapshot")

	message := fmt.Sprintf("%d accelerator node(s), %d available accelerator(s), %d storage class(es)",
		snapshot.GPUNodeCount, snapshot.AvailableAccelerators, snapshot.StorageClassCount)

	verdict, finding := Classify(snapshot)
	switch verdict {
	case types.VerdictFatal:
		finding.Message = fmt.Sprintf("%s (%s)", finding.Message, message)
		return stageResult{}, finding
	case types.VerdictWarn:
		return succeeded(message, finding), nil
	}
	return succeeded(message), nil
}
