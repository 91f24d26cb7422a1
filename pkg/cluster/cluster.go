package cluster

import (
	"context"
	"os"
	"path/filepath"

	"emperror.dev/errors"
)

// ErrNotFound is returned when a looked-up object does not exist
var ErrNotFound = errors.NewPlain("not found")

// Node is an accelerator-capable node with its accelerator accounting
type Node struct {
	Name                    string
	AllocatableAccelerators int64
	AllocatedAccelerators   int64
}

// Available returns the accelerator units not yet requested by pods
func (n Node) Available() int64 {
	if free := n.AllocatableAccelerators - n.AllocatedAccelerators; free > 0 {
		return free
	}
	return 0
}

// RolloutStatus is the replica accounting of a deployment
type RolloutStatus struct {
	Generation         int64
	ObservedGeneration int64
	DesiredReplicas    int32
	Replicas           int32
	UpdatedReplicas    int32
	ReadyReplicas      int32
	AvailableReplicas  int32
}

// Complete reports whether the rollout converged: the controller observed
// the latest spec, every replica runs the new template and is available.
func (s RolloutStatus) Complete() bool {
	if s.ObservedGeneration < s.Generation {
		return false
	}
	if s.UpdatedReplicas < s.DesiredReplicas {
		return false
	}
	if s.Replicas > s.UpdatedReplicas {
		return false
	}
	return s.AvailableReplicas >= s.UpdatedReplicas
}

// Client is the narrow contract the orchestrator uses to query and mutate
// the cluster. Implementations return structured data; no caller parses
// command output.
type Client interface {
	// Authenticate verifies an active session and returns the user name
	Authenticate(ctx context.Context) (string, error)

	// ListNodes returns nodes matching selector with accelerator accounting
	ListNodes(ctx context.Context, selector string) ([]Node, error)

	// ListStorageClasses returns storage class names
	ListStorageClasses(ctx context.Context) ([]string, error)

	NamespaceExists(ctx context.Context, name string) (bool, error)
	CreateNamespace(ctx context.Context, name string, labels map[string]string) error

	// ApplyPolicy creates or updates every object of a manifest in namespace
	ApplyPolicy(ctx context.Context, namespace string, manifest []byte) error

	// RolloutStatus returns the status of a deployment
	RolloutStatus(ctx context.Context, namespace, workload string) (RolloutStatus, error)

	// PodLogs returns the last tailLines lines of each pod of a deployment
	PodLogs(ctx context.Context, namespace, workload string, tailLines int64) (string, error)

	// ReadyEndpoints counts ready endpoints backing a service
	ReadyEndpoints(ctx context.Context, namespace, service string) (int, error)

	// RouteHost returns the public host of a route, or ErrNotFound
	RouteHost(ctx context.Context, namespace, route string) (string, error)
}

// Credentials locates the session credential: an explicit kubeconfig,
// $KUBECONFIG, ~/.kube/config, or an in-cluster service account.
func Credentials(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "kubeconfig %s", explicit)
		}
		return explicit, nil
	}

	if env := os.Getenv("KUBECONFIG"); env != "" {
		for _, path := range filepath.SplitList(env) {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".kube", "config")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		if _, err := os.Stat(serviceAccountToken); err == nil {
			return "in-cluster", nil
		}
	}

	return "", errors.NewPlain("no kubeconfig or in-cluster service account found")
}

const serviceAccountToken = "/var/run/secrets/kubernetes.io/serviceaccount/token"
