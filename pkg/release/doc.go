/*
Package release builds and submits model releases.

BuildSpec turns a resolved deployment request and its model profile into a
Spec: a deterministic release name, the chart path, the values file for the
target environment and a flat set of parameter overrides. Overrides are
layered, later layers winning:

 1. model identity, feature toggles, variant and resource limits
 2. per-environment overrides
 3. operator --set overrides

Helm implements Manager by running helm upgrade --install, which makes
resubmitting the same model and environment an in-place upgrade. In dry-run
mode helm validates and renders the release without touching the cluster,
and its output is returned verbatim.
*/
package release
