package cluster

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/samber/lo"
	authenticationv1 "k8s.io/api/authentication/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	storagev1 "k8s.io/api/storage/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// RouteResource is the OpenShift route API
var RouteResource = schema.GroupVersionResource{
	Group:    "route.openshift.io",
	Version:  "v1",
	Resource: "routes",
}

// maxLogPods bounds how many pods contribute to a log excerpt
const maxLogPods = 3

// Options configures the Kubernetes adapter
type Options struct {
	// Kubeconfig is an explicit kubeconfig path; empty uses default loading rules
	Kubeconfig string

	// AcceleratorResource is the extended resource name counted as accelerators
	AcceleratorResource corev1.ResourceName
}

// Kube implements Client on client-go. Clients are built on first use so
// that a missing kubeconfig surfaces from Authenticate rather than at
// construction.
type Kube struct {
	opts Options

	once    sync.Once
	initErr error
	clients kubernetes.Interface
	dynamic dynamic.Interface
}

// NewKube creates a lazily-connected adapter
func NewKube(opts Options) *Kube {
	return &Kube{opts: opts}
}

// NewKubeForClients creates an adapter over existing clients
func NewKubeForClients(clients kubernetes.Interface, dyn dynamic.Interface, opts Options) *Kube {
	k := &Kube{opts: opts, clients: clients, dynamic: dyn}
	k.once.Do(func() {})
	return k
}

func (k *Kube) restConfig() (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = k.opts.Kubeconfig

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err == nil {
		return restConfig, nil
	}
	if k.opts.Kubeconfig != "" {
		return nil, errors.Wrap(err, "load kubeconfig")
	}

	inCluster, inErr := rest.InClusterConfig()
	if inErr != nil {
		return nil, errors.Wrap(err, "load kubeconfig")
	}
	return inCluster, nil
}

func (k *Kube) init() error {
	k.once.Do(func() {
		restConfig, err := k.restConfig()
		if err != nil {
			k.initErr = err
			return
		}
		k.clients, err = kubernetes.NewForConfig(restConfig)
		if err != nil {
			k.initErr = errors.Wrap(err, "create kubernetes client")
			return
		}
		k.dynamic, err = dynamic.NewForConfig(restConfig)
		if err != nil {
			k.initErr = errors.Wrap(err, "create dynamic client")
		}
	})
	return k.initErr
}

// Authenticate reviews the caller's own identity
func (k *Kube) Authenticate(ctx context.Context) (string, error) {
	if err := k.init(); err != nil {
		return "", err
	}

	review, err := k.clients.AuthenticationV1().SelfSubjectReviews().Create(ctx, &authenticationv1.SelfSubjectReview{}, metav1.CreateOptions{})
	if err == nil {
		return review.Status.UserInfo.Username, nil
	}
	if !apierrors.IsNotFound(err) {
		return "", errors.Wrap(err, "review session identity")
	}

	// Clusters older than 1.28 lack SelfSubjectReview; any authenticated
	// read proves the session.
	if _, err := k.clients.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1}); err != nil {
		return "", errors.Wrap(err, "verify session")
	}
	return "", nil
}

// ListNodes returns the nodes matching selector. Allocated accelerators
// are summed from the requests of every non-terminated pod on each node.
func (k *Kube) ListNodes(ctx context.Context, selector string) ([]Node, error) {
	if err := k.init(); err != nil {
		return nil, err
	}

	nodeList, err := k.clients.CoreV1().Nodes().List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, errors.Wrapf(err, "list nodes %q", selector)
	}
	if len(nodeList.Items) == 0 {
		return nil, nil
	}

	podList, err := k.clients.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "list pods")
	}

	allocated := make(map[string]int64)
	for _, pod := range podList.Items {
		if pod.Spec.NodeName == "" || pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
			continue
		}
		allocated[pod.Spec.NodeName] += k.podAccelerators(&pod)
	}

	return lo.Map(nodeList.Items, func(n corev1.Node, _ int) Node {
		var allocatable int64
		if q, ok := n.Status.Allocatable[k.opts.AcceleratorResource]; ok {
			allocatable = q.Value()
		}
		return Node{
			Name:                    n.Name,
			AllocatableAccelerators: allocatable,
			AllocatedAccelerators:   allocated[n.Name],
		}
	}), nil
}

func (k *Kube) podAccelerators(pod *corev1.Pod) int64 {
	var total int64
	for _, c := range pod.Spec.Containers {
		if q, ok := c.Resources.Requests[k.opts.AcceleratorResource]; ok {
			total += q.Value()
		} else if q, ok := c.Resources.Limits[k.opts.AcceleratorResource]; ok {
			total += q.Value()
		}
	}
	return total
}

// ListStorageClasses returns the storage class names
func (k *Kube) ListStorageClasses(ctx context.Context) ([]string, error) {
	if err := k.init(); err != nil {
		return nil, err
	}

	list, err := k.clients.StorageV1().StorageClasses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "list storage classes")
	}
	return lo.Map(list.Items, func(sc storagev1.StorageClass, _ int) string { return sc.Name }), nil
}

// NamespaceExists reports whether the namespace exists
func (k *Kube) NamespaceExists(ctx context.Context, name string) (bool, error) {
	if err := k.init(); err != nil {
		return false, err
	}

	_, err := k.clients.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "get namespace %s", name)
	}
	return true, nil
}

// CreateNamespace creates a namespace; an existing namespace is not an error
func (k *Kube) CreateNamespace(ctx context.Context, name string, labels map[string]string) error {
	if err := k.init(); err != nil {
		return err
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels}}
	_, err := k.clients.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "create namespace %s", name)
	}
	return nil
}

// ApplyPolicy decodes a multi-document manifest and creates or updates each
// object in namespace.
func (k *Kube) ApplyPolicy(ctx context.Context, namespace string, manifest []byte) error {
	if err := k.init(); err != nil {
		return err
	}

	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(manifest)))
	decoder := scheme.Codecs.UniversalDeserializer()

	applied := 0
	for {
		doc, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read policy manifest")
		}
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}

		obj, gvk, err := decoder.Decode(doc, nil, nil)
		if err != nil {
			return errors.Wrap(err, "decode policy document")
		}
		if err := k.applyObject(ctx, namespace, obj); err != nil {
			return errors.Wrapf(err, "apply %s", gvk.Kind)
		}
		applied++
	}

	if applied == 0 {
		return errors.NewPlain("policy manifest contains no objects")
	}
	return nil
}

func (k *Kube) applyObject(ctx context.Context, namespace string, obj any) error {
	switch o := obj.(type) {
	case *corev1.ServiceAccount:
		o.Namespace = namespace
		return upsert[*corev1.ServiceAccount](ctx, k.clients.CoreV1().ServiceAccounts(namespace), o)
	case *rbacv1.Role:
		o.Namespace = namespace
		return upsert[*rbacv1.Role](ctx, k.clients.RbacV1().Roles(namespace), o)
	case *rbacv1.RoleBinding:
		o.Namespace = namespace
		for i := range o.Subjects {
			if o.Subjects[i].Kind == rbacv1.ServiceAccountKind && o.Subjects[i].Namespace == "" {
				o.Subjects[i].Namespace = namespace
			}
		}
		return upsert[*rbacv1.RoleBinding](ctx, k.clients.RbacV1().RoleBindings(namespace), o)
	case *networkingv1.NetworkPolicy:
		o.Namespace = namespace
		return upsert[*networkingv1.NetworkPolicy](ctx, k.clients.NetworkingV1().NetworkPolicies(namespace), o)
	case *corev1.ResourceQuota:
		o.Namespace = namespace
		return upsert[*corev1.ResourceQuota](ctx, k.clients.CoreV1().ResourceQuotas(namespace), o)
	case *corev1.LimitRange:
		o.Namespace = namespace
		return upsert[*corev1.LimitRange](ctx, k.clients.CoreV1().LimitRanges(namespace), o)
	default:
		return fmt.Errorf("unsupported policy object %T", obj)
	}
}

type namespacedClient[T metav1.Object] interface {
	Create(ctx context.Context, obj T, opts metav1.CreateOptions) (T, error)
	Update(ctx context.Context, obj T, opts metav1.UpdateOptions) (T, error)
	Get(ctx context.Context, name string, opts metav1.GetOptions) (T, error)
}

func upsert[T metav1.Object](ctx context.Context, c namespacedClient[T], obj T) error {
	_, err := c.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil || !apierrors.IsAlreadyExists(err) {
		return err
	}

	current, err := c.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil {
		return err
	}
	obj.SetResourceVersion(current.GetResourceVersion())
	_, err = c.Update(ctx, obj, metav1.UpdateOptions{})
	return err
}

// RolloutStatus returns the replica accounting of a deployment
func (k *Kube) RolloutStatus(ctx context.Context, namespace, workload string) (RolloutStatus, error) {
	if err := k.init(); err != nil {
		return RolloutStatus{}, err
	}

	d, err := k.clients.AppsV1().Deployments(namespace).Get(ctx, workload, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return RolloutStatus{}, errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return RolloutStatus{}, errors.Wrapf(err, "get deployment %s/%s", namespace, workload)
	}

	desired := int32(1)
	if d.Spec.Replicas != nil {
		desired = *d.Spec.Replicas
	}
	return RolloutStatus{
		Generation:         d.Generation,
		ObservedGeneration: d.Status.ObservedGeneration,
		DesiredReplicas:    desired,
		Replicas:           d.Status.Replicas,
		UpdatedReplicas:    d.Status.UpdatedReplicas,
		ReadyReplicas:      d.Status.ReadyReplicas,
		AvailableReplicas:  d.Status.AvailableReplicas,
	}, nil
}

// PodLogs collects the tail of each container log of the newest pods
// selected by the deployment.
func (k *Kube) PodLogs(ctx context.Context, namespace, workload string, tailLines int64) (string, error) {
	if err := k.init(); err != nil {
		return "", err
	}

	d, err := k.clients.AppsV1().Deployments(namespace).Get(ctx, workload, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "get deployment %s/%s", namespace, workload)
	}
	selector, err := metav1.LabelSelectorAsSelector(d.Spec.Selector)
	if err != nil {
		return "", errors.Wrap(err, "parse deployment selector")
	}

	pods, err := k.clients.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
	if err != nil {
		return "", errors.Wrap(err, "list pods")
	}

	items := pods.Items
	sort.Slice(items, func(i, j int) bool {
		return items[j].CreationTimestamp.Before(&items[i].CreationTimestamp)
	})
	if len(items) > maxLogPods {
		items = items[:maxLogPods]
	}

	var b strings.Builder
	for _, pod := range items {
		for _, c := range pod.Spec.Containers {
			raw, err := k.clients.CoreV1().Pods(namespace).GetLogs(pod.Name, &corev1.PodLogOptions{
				Container: c.Name,
				TailLines: &tailLines,
			}).Do(ctx).Raw()
			fmt.Fprintf(&b, "==> %s/%s <==\n", pod.Name, c.Name)
			if err != nil {
				fmt.Fprintf(&b, "(logs unavailable: %v)\n", err)
				continue
			}
			b.Write(raw)
			if len(raw) > 0 && raw[len(raw)-1] != '\n' {
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}

// ReadyEndpoints counts ready endpoints across the service's EndpointSlices
func (k *Kube) ReadyEndpoints(ctx context.Context, namespace, service string) (int, error) {
	if err := k.init(); err != nil {
		return 0, err
	}

	slices, err := k.clients.DiscoveryV1().EndpointSlices(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: discoveryv1.LabelServiceName + "=" + service,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "list endpoint slices for %s/%s", namespace, service)
	}

	ready := 0
	for _, slice := range slices.Items {
		ready += lo.CountBy(slice.Endpoints, func(e discoveryv1.Endpoint) bool {
			return e.Conditions.Ready == nil || *e.Conditions.Ready
		})
	}
	return ready, nil
}

// RouteHost returns spec.host of a route
func (k *Kube) RouteHost(ctx context.Context, namespace, route string) (string, error) {
	if err := k.init(); err != nil {
		return "", err
	}

	obj, err := k.dynamic.Resource(RouteResource).Namespace(namespace).Get(ctx, route, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", errors.WithStack(ErrNotFound)
	}
	if err != nil {
		return "", errors.Wrapf(err, "get route %s/%s", namespace, route)
	}

	host, found, err := unstructured.NestedString(obj.Object, "spec", "host")
	if err != nil {
		return "", errors.Wrapf(err, "read route %s/%s host", namespace, route)
	}
	if !found || host == "" {
		return "", errors.WithStack(ErrNotFound)
	}
	return host, nil
}

var _ Client = (*Kube)(nil)
