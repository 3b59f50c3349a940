// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Events cover batch
// completion and item failures so operators hear about missing clips without
// watching logs.
package notifications
