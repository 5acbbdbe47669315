// Package patch discovers candidate patch files under a source root.
//
// Patches live at a fixed nesting depth given by a patch pattern such as
// "annotation/subtype/slide". Only the number of labels matters; segment
// names are never interpreted.
package patch
