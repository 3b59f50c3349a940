// Package pipeline builds the stage graph from configuration: provider
// clients, the ffmpeg muxer, the orchestrator, and the batch coordinator.
// The CLI and the daemon share this wiring so a message is processed the same
// way regardless of how it arrived.
package pipeline
