// Package logs reads mailreel log files for the CLI.
//
// Tail returns the last N lines together with the byte offset where reading
// stopped; Follow resumes from an offset and hands each new line to a
// callback until the context ends.
package logs
