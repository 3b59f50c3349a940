// Package script writes the short narration read over each clip.
//
// Synthesizer asks a TextGenerator for a one or two sentence summary of a
// message and owns the retry policy: a bounded number of attempts, each with
// its own deadline, exponential backoff between them, and an early stop on
// permanent errors. When no acceptable text comes back the synthesizer falls
// back to a template built from the sender and subject, so Synthesize never
// fails.
package script
