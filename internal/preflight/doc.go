// Package preflight provides readiness checks for the filesystem paths a
// normalization run depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before building the normalizer bank.
//     If any check fails, the run stops before touching the destination tree.
//   - The CLI "tilenorm check" command prints every Result as a table. It
//     never creates the destination root.
package preflight
