// Command mailreel turns email messages into short narrated video clips.
//
// One-shot commands (process, convert) hold the state lock for the duration
// of the batch. The serve command runs the HTTP API and optional mailbox
// poller in the foreground; status and stop talk to that server.
package main
