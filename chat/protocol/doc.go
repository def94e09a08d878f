// Package protocol defines the wire frames exchanged between chat clients and
// the relay, and their JSON encoding.
//
// Frame Shape:
//
// Every frame is a JSON object with three fields:
//
//	{"messageType": "users"|"register"|"message", "dataArray": [...], "data": "..."}
//
// dataArray is only used by "users" frames (the full roster) and data is used
// by "register" and "message" frames. Absent fields are encoded as null.
//
// Message Asymmetry:
//
// The "message" tag carries two different payloads depending on direction:
//   - Client to relay: data is the raw text the user typed (ChatSend)
//   - Relay to client: data is itself a JSON-encoded Delivery record
//     {"from": "...", "message": "...", "reactions": null | [[emoji, [users]]]}
//
// The two shapes are modelled as distinct Go types so the session layer never
// has to inspect the direction of a frame.
//
// Errors:
//
// Decode wraps ErrMalformed for any frame that is not valid JSON, carries an
// unknown messageType, or lacks a required field. Callers treat such frames
// as droppable; they never end a session.
package protocol
