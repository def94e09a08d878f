// Package relay provides the HTTP surface of the chat relay.
//
// Endpoints:
//   - GET /ws - WebSocket upgrade; frames are handled by the hub
//   - GET /api/users - Current roster as {"count": n, "users": [...]}
//   - GET /healthz - Liveness probe
package relay
