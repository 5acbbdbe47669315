// Package stain implements the colour-normalization collaborator used by the
// batch pipeline: image decoding and encoding, luminosity standardization,
// and the Reinhard, Macenko and Vahadane stain normalizers.
//
// Every exported operation is synchronous and free of side effects other
// than Save writing its destination file. Fitted transformers are immutable
// and safe for concurrent use.
package stain
