// Package main hosts the tilenorm CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration (file, then flags), builds
// the structured logger and hands off to internal/workflow for runs,
// internal/preflight for checks and internal/ledger for run history. Output
// tables go to stdout; logs and the progress bar go to stderr.
package main
