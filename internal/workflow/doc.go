// Package workflow sequences the pipeline stages for each message and runs
// batches of messages with de-duplication and per-item isolation.
//
// Orchestrator drives one message through normalize, script, audio, and
// assemble. The first three stages always produce a result (degrading to a
// fallback when their service fails), so only assemble can fail an item.
// Between stages the orchestrator checks the batch context; a stage that has
// already started runs to completion on a detached context bounded by its own
// timeout.
//
// Coordinator loads the known message ids from the store, skips duplicates,
// and fans the remaining items out over a bounded errgroup. Each item is its
// own error boundary, so one failing message never aborts its siblings.
// Successful artifacts are persisted once; failures are recorded for
// diagnosis.
package workflow
