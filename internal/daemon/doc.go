// Package daemon coordinates the long-running mailreel process.
//
// It holds the state-directory flock so only one batch runner works against a
// store at a time, serves the HTTP API, and, when a mailbox is configured,
// polls it on an interval. Batches started from the API and from the poll
// loop are serialized.
//
// Keep orchestration logic here: the pipeline itself lives in workflow while
// the daemon focuses on startup, shutdown, and request handling.
package daemon
