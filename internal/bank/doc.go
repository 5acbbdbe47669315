// Package bank builds the normalizer bank: one fitted transform for every
// (method, reference image) pair, in method-major order.
//
// A Bank is immutable once built and is shared read-only by all workers of
// a run; workers address handles by integer index. BuildWithFallback adds
// the whole-bank retry that disables luminosity standardization when it is
// the reason fitting failed.
package bank
