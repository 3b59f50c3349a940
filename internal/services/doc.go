// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp message IDs, batch IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and Classify which maps
//     any failure onto the transient/permanent split used in outcomes.
//
// Adapters under this directory (llm, openai, ffmpeg) tag their failures with
// these markers so stage code never has to inspect transport details.
package services
