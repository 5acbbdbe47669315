// Package workflow runs one normalization pass over a patch tree.
//
// Before any patch is touched the Manager validates the configuration and
// takes the per-destination run lock. It then builds the normalizer bank,
// retrying once without luminosity standardization when that is what
// failed. Candidates are enumerated up front and walked in chunks the size
// of the worker pool. A chunk is fully collected before the next one is
// planned, so the pool is the only concurrent part of a run and
// cancellation takes effect between chunks.
//
// Outputs appear only on full success and existing outputs are skipped, so
// a run interrupted at any point resumes by simply running again.
package workflow
