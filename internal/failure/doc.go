// Package failure defines the error taxonomy shared by the batch pipeline and
// the context keys used to correlate log lines with a run.
//
// Errors are classified by wrapping one of the exported sentinel markers with
// Wrap. Callers test the class with errors.Is and obtain a stable, log-friendly
// name with KindOf. Fatal classes (ErrPath, ErrBankConstruction, ErrLocked)
// terminate a run; item classes (ErrDecode, ErrTransform, ErrWrite) are
// absorbed at the worker boundary.
package failure
