// Package session holds the client-side chat state and the transitions that
// keep it in sync with the relay.
//
// The package implements:
//   - Pure state transitions (Apply, ToggleReaction) over immutable State values
//   - A Store that owns the live State and serializes every event
//   - Registration on session creation
//   - Change notifications for presentation bindings
//
// Core Types:
//
// State is a value snapshot of the roster, the message feed and the current
// user. Store owns the single mutable copy; everything handed out by Snapshot
// or to observers is a deep copy.
//
// Event Model:
//
// Inbound frames and local actions are processed one at a time, in the order
// they reach the Store. Every processed event notifies observers with a
// changed flag so bindings can skip redundant renders.
//
// Usage:
//
//	store := session.CreateSession(channel, "alice")
//	store.Subscribe(func(state session.State, changed bool) {
//		if changed {
//			render(state)
//		}
//	})
//	go store.Run(ctx, channel.Frames())
//
//	store.SubmitMessage("hello")
//	store.ToggleReaction(0, "👍")
//
// Messages are addressed by position. The feed is append-only, so an index
// stays valid for the lifetime of the session; introducing deletion would
// require stable message identifiers.
package session
