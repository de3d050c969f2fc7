// Package protocol owns the remote command wire contract.
//
// Ownership boundary:
// - message ids and the request/answer message shapes
// - body encoding: length-prefixed UTF-8 strings, big-endian
// - semantic validation entry points
//
// Framing lives in protocol/frame.
package protocol
