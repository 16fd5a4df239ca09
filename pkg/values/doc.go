// Package values holds raw configuration trees and the layered merge engine.
//
// A Tree is the decoded form of a values file: nested maps keyed by string,
// lists and scalars. Trees coming from different sources are combined with
// Merge, one Layer at a time and strictly in order, so later layers win.
//
// # Merge Rules
//
// For every key of the overlay:
//
//   - With IgnoreExtra, keys missing from the base are dropped.
//   - When the two values have different kinds or scalar types, the overlay
//     value replaces the base value as a whole.
//   - Two maps are merged recursively.
//   - Otherwise the overlay value replaces the base value. With
//     PreventDuplication, an identical non-empty value is reported as a
//     DuplicationError, since it usually means the wrong file was edited.
//
// IgnoreExtra and PreventDuplication apply to the top level of the overlay.
// Nested maps are always merged with the plain rules.
//
// # Usage
//
//	base, err := values.LoadFile("chart/values.yaml")
//	merged, err := values.MergeLayers(base,
//	    values.Layer{Name: "cluster", Path: "chart/values-test.yaml", Tree: overlay, PreventDuplication: true},
//	)
package values
