// Package message turns loosely structured inbound email data into the
// canonical record every later stage consumes.
//
// Normalize never fails: absent or malformed fields are replaced with fixed
// placeholders, bodies are cleaned of HTML, quoted replies, and signatures,
// and a stable identifier is derived from content when the source omits one.
// ParseText and FromMail adapt raw RFC 822 text into the same Raw shape.
package message
