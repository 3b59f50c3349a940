// Package mailbox provides message sources for batch runs: a JSON export and
// a directory of .eml files (plain or maildir layout). Both return the most
// recent messages first.
package mailbox
