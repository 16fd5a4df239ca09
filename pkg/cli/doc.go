// Package cli implements the lain command line.
//
// # Overview
//
// lain deploys and inspects apps described by a helm chart on a set of
// Kubernetes clusters. It resolves which cluster is current from the kube
// config link, merges the chart values with the values of that cluster and
// talks to helm, kubectl, the API server, the image registry and Prometheus.
//
// # Commands
//
//	lain use [CLUSTER]             link kubeconfig-CLUSTER, or list clusters
//	lain values                    print merged app values
//	lain cluster-config [CLUSTER]  print cluster values
//	lain template [--set K=V]      render the chart
//	lain get-values                print the values of the deployed release
//	lain lint [--simple]           lint the chart and resource declarations
//	lain top                       show observed proc usage
//	lain status [--watch]          release state, pods and URL health
//	lain wait [-l SELECTOR]        wait for pods to be ready
//	lain tags [-n 10]              recent image tags
//	lain secret show|add|remove    manage the file Secret
//	lain env show|add|add-file|remove
//	                               manage the env Secret
//	lain create-job CRONJOB        run a cronjob now and follow its logs
//	lain doctor                    check the local setup
//	lain admin cleanup-registry    delete ancient image tags
//	lain admin list-images         list registry repositories
//
// # Global Flags
//
//	--values, -f          extra values file (LAIN_VALUES)
//	--cluster-values-dir  internal cluster values (LAIN_CLUSTER_VALUES_DIR)
//	--kube-dir            kubeconfig directory (LAIN_KUBE_DIR)
//	--chart-dir           chart directory (default: chart)
//	--use                 switch cluster first
//	--ignore-lint         skip lint (LAIN_IGNORE_LINT)
//	--log-level           debug, info, warn, error (LOG_LEVEL)
//	--log-format          text, json
//	--debug               same as --log-level debug
//
// Commands that print data take --format/-t (yaml, json, table) and
// --output/-o.
//
// # Exit Codes
//
//	0  Success
//	1  Any failure, with the structured error printed to stderr
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/lain-cli/lain/pkg/cli.version=1.0.0'"
package cli
