// Package tui renders a chat session in the terminal.
//
// The model subscribes to a session store and redraws on every state change.
// Typed lines are sent as chat messages, except for two commands:
//
//	/react <index> <emoji>   toggle your reaction on message #index
//	/quit                    leave the chat
package tui
