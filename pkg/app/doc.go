// Package app loads the values of a lain app and carries the state of one
// lain invocation.
//
// A Session is built once per command from the global flags. It resolves the
// current cluster, loads its configuration and, when run inside an app
// repository, the app's chart/values.yaml merged with every cluster layer.
//
// The package also holds small derivations the commands share: ingress URLs,
// image references, job names and the like.
package app
