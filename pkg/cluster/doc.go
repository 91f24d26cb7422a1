/*
Package cluster is the orchestrator's view of the target Kubernetes cluster.

The Client interface exposes the handful of queries and mutations a model
deployment needs: session verification, accelerator node accounting,
storage classes, namespace provisioning, policy application, deployment
rollout status, pod log excerpts, endpoint readiness and route lookup.

Kube implements Client on client-go. Typed resources go through the
kubernetes clientset; OpenShift routes, which have no typed client here,
go through the dynamic client.

# Accelerator Accounting

A node's available accelerators are its allocatable extended resource
minus the requests of every non-terminated pod bound to it:

	available = allocatable(nvidia.com/gpu) - sum(pod requests on node)

Pods that declare only a limit count their limit.
*/
package cluster
