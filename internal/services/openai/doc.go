// Package openai adapts the OpenAI API to the narration text generator and
// speech synthesizer contracts.
//
// Chat completions go through the typed openai-go client; speech synthesis
// posts the raw audio/speech request and returns the encoded audio bytes.
// SDK level retries are disabled because each pipeline stage owns its own
// retry or fallback policy. Failures are tagged with the services markers so
// callers can tell transient from permanent errors.
package openai
