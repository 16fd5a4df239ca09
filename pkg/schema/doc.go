// Package schema declares the shape of lain values files and validates
// value trees against it.
//
// A Schema is a list of Field declarations plus an explicit alias table.
// Load runs a tree through four passes:
//
//  1. Preparation: alias keys are folded into their canonical key and
//     defaults are filled in, at every nesting level.
//  2. Shape checks: the declarations are rendered to a JSON Schema document
//     and validated with github.com/santhosh-tekuri/jsonschema/v5. Unknown
//     keys are kept unless the schema is Strict.
//  3. Field rules: reserved words, normalizing validators and nested
//     schemas, innermost first.
//  4. Post-load hooks: cross-field rules and derived keys, such as the
//     combined procs map.
//
// Every problem found is collected into one ValidationError, except for a
// missing external value, which aborts the load with a hint.
//
// Reserved words are the field and alias names of every non-strict schema
// reachable from HelmValues and ClusterConfig. They are collected once, the
// first time they are needed.
package schema
