// Package mcp exposes a live chat session to AI agents over the Model Context
// Protocol.
//
// The mcp package implements:
//   - MCP server bound to one chat session
//   - Tool definitions for reading state and dispatching chat actions
//   - Plain-text formatting of the roster and message feed
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - chat_state: Get the roster and the message feed with reaction counts
//   - list_users: List connected users
//   - send_message: Send a chat message (it appears once the relay echoes it)
//   - toggle_reaction: Toggle the session user's emoji on a message by index
//
// Reactions are local to the session and are not seen by other users.
//
// Usage:
//
//	srv := mcp.NewServer(store)
//	if err := server.ServeStdio(srv.GetMCPServer()); err != nil {
//		return err
//	}
package mcp
