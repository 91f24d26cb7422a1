package deploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/modelctl/pkg/cluster"
	"github.com/cuemby/modelctl/pkg/config"
	"github.com/cuemby/modelctl/pkg/health"
	"github.com/cuemby/modelctl/pkg/release"
)

// fakeCluster records every call. CreateNamespace and ApplyPolicy are the
// only mutating calls.
type fakeCluster struct {
	mu    sync.Mutex
	calls []string

	user    string
	authErr error

	nodes          []cluster.Node
	storageClasses []string

	namespaces map[string]bool
	createErr  error
	applyErr   error

	ready        bool
	rolloutErr   error
	rolloutCalls int

	logs    string
	logsErr error

	endpoints int

	routes map[string]string
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		user: "deployer",
		nodes: []cluster.Node{
			{Name: "gpu-1", AllocatableAccelerators: 1},
			{Name: "gpu-2", AllocatableAccelerators: 1},
			{Name: "gpu-3", AllocatableAccelerators: 1, AllocatedAccelerators: 1},
		},
		storageClasses: []string{"gp3"},
		namespaces:     map[string]bool{},
		ready:          true,
		endpoints:      1,
		routes: map[string]string{
			"llama-inference":     "llama.apps.example.com",
			"llama-70b-inference": "llama-70b.apps.example.com",
			"stable-diffusion":    "sd.apps.example.com",
		},
	}
}

func (c *fakeCluster) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeCluster) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeCluster) MutatingCalls() []string {
	var out []string
	for _, call := range c.Calls() {
		if call == "CreateNamespace" || call == "ApplyPolicy" {
			out = append(out, call)
		}
	}
	return out
}

func (c *fakeCluster) Called(name string) bool {
	for _, call := range c.Calls() {
		if call == name {
			return true
		}
	}
	return false
}

func (c *fakeCluster) Authenticate(ctx context.Context) (string, error) {
	c.record("Authenticate")
	return c.user, c.authErr
}

func (c *fakeCluster) ListNodes(ctx context.Context, selector string) ([]cluster.Node, error) {
	c.record("ListNodes")
	return c.nodes, nil
}

func (c *fakeCluster) ListStorageClasses(ctx context.Context) ([]string, error) {
	c.record("ListStorageClasses")
	return c.storageClasses, nil
}

func (c *fakeCluster) NamespaceExists(ctx context.Context, name string) (bool, error) {
	c.record("NamespaceExists")
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.namespaces[name], nil
}

func (c *fakeCluster) CreateNamespace(ctx context.Context, name string, labels map[string]string) error {
	c.record("CreateNamespace")
	if c.createErr != nil {
		return c.createErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces[name] = true
	return nil
}

func (c *fakeCluster) ApplyPolicy(ctx context.Context, namespace string, manifest []byte) error {
	c.record("ApplyPolicy")
	return c.applyErr
}

func (c *fakeCluster) RolloutStatus(ctx context.Context, namespace, workload string) (cluster.RolloutStatus, error) {
	c.record("RolloutStatus")
	c.mu.Lock()
	c.rolloutCalls++
	c.mu.Unlock()

	if c.rolloutErr != nil {
		return cluster.RolloutStatus{}, c.rolloutErr
	}
	if c.ready {
		return cluster.RolloutStatus{Generation: 1, ObservedGeneration: 1, DesiredReplicas: 1, Replicas: 1, UpdatedReplicas: 1, ReadyReplicas: 1, AvailableReplicas: 1}, nil
	}
	return cluster.RolloutStatus{Generation: 1, ObservedGeneration: 1, DesiredReplicas: 1, Replicas: 1, UpdatedReplicas: 1}, nil
}

func (c *fakeCluster) PodLogs(ctx context.Context, namespace, workload string, tailLines int64) (string, error) {
	c.record("PodLogs")
	return c.logs, c.logsErr
}

func (c *fakeCluster) ReadyEndpoints(ctx context.Context, namespace, service string) (int, error) {
	c.record("ReadyEndpoints")
	return c.endpoints, nil
}

func (c *fakeCluster) RouteHost(ctx context.Context, namespace, route string) (string, error) {
	c.record("RouteHost:" + route)
	host, ok := c.routes[route]
	if !ok {
		return "", fmt.Errorf("route %s: %w", route, cluster.ErrNotFound)
	}
	return host, nil
}

var _ cluster.Client = (*fakeCluster)(nil)

// fakeReleases keeps one logical release per name, like an upgrade-or-install
type fakeReleases struct {
	mu        sync.Mutex
	submitted []release.Spec
	releases  map[string]int
	output    string
	err       error
}

func newFakeReleases() *fakeReleases {
	return &fakeReleases{releases: map[string]int{}, output: "NAME: release\nSTATUS: deployed\n"}
}

func (f *fakeReleases) Submit(ctx context.Context, spec release.Spec) (release.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, spec)
	if f.err != nil {
		return release.Result{Output: f.output}, f.err
	}
	if !spec.DryRun {
		f.releases[spec.Name]++
	}
	return release.Result{Output: f.output}, nil
}

var _ release.Manager = (*fakeReleases)(nil)

type fakeProber struct {
	mu     sync.Mutex
	urls   []string
	result health.Result
}

func (p *fakeProber) Probe(ctx context.Context, url string) health.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	return p.result
}

type fakeTools struct {
	missing map[string]bool
}

func (f fakeTools) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

type harness struct {
	cluster  *fakeCluster
	releases *fakeReleases
	prober   *fakeProber
	opts     Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cluster:  newFakeCluster(),
		releases: newFakeReleases(),
		prober:   &fakeProber{result: health.Result{Healthy: true, StatusCode: 200, Message: "HTTP 200 OK"}},
	}
	h.opts = Options{
		Cluster:      h.cluster,
		Releases:     h.releases,
		Prober:       h.prober,
		Tools:        fakeTools{},
		Credentials:  func(string) (string, error) { return "/home/deployer/.kube/config", nil },
		ChartDir:     t.TempDir(),
		PollInterval: 5 * time.Millisecond,
	}
	return h
}

func (h *harness) orchestrator() *Orchestrator {
	return New(config.NewResolver(config.DefaultCatalog()), h.opts)
}

func (h *harness) run(params config.Params) *Outcome {
	return h.orchestrator().Run(context.Background(), params)
}

func params(model, env string, dryRun bool) config.Params {
	return config.Params{
		ModelType:      model,
		Namespace:      "ai-inference",
		Environment:    env,
		DryRun:         dryRun,
		TimeoutSeconds: 30,
	}
}
