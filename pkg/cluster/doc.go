// Package cluster resolves which Kubernetes cluster lain talks to and loads
// its configuration.
//
// The current cluster is recorded as a symlink: ~/.kube/config points at
// ~/.kube/kubeconfig-<cluster>. Each cluster has internal defaults in
// values-<cluster>.yaml inside the cluster values directory, which an app
// repository may override through chart/values-<cluster>.yaml and an extra
// values file, but only for keys the internal defaults already define.
//
// A Resolver caches the configuration of the current cluster for the rest
// of the invocation. Nothing is cached across invocations.
package cluster
