// Package textutil provides small text helpers shared by the pipeline stages:
// rune-aware truncation for narration and overlay text, and sanitizing of
// message identifiers into safe file name stems.
package textutil
