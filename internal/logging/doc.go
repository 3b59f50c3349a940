// Package logging builds the slog loggers used across mailreel.
//
// Two formats are supported: "console" renders through charmbracelet/log for
// humans at a terminal, "json" emits one object per line for log shippers.
// Both honour the level from configuration and can tee into a log file.
//
// WithContext stamps the message, batch, stage, and correlation identifiers
// carried on a context so that every stage log line can be joined back to
// the item that produced it.
package logging
