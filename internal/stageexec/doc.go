// Package stageexec runs a single pipeline stage with uniform logging and
// failure notification so the orchestrator stays focused on sequencing.
package stageexec
