// Package websocket provides the WebSocket transport for relay chat.
//
// The websocket package implements:
//   - Channel, the client side adapter: a non-blocking Send and an ordered
//     stream of inbound frames
//   - Hub, the relay side: roster tracking and message fan-out
//   - Connection lifecycle management with ping/pong keepalive
//
// Architecture:
//
// The relay uses a hub-and-spoke model where a central Hub owns all
// connections. Each connection has a read pump that forwards frames to the
// hub and a write pump that drains a buffered send queue. All hub state is
// touched only by the Run goroutine.
//
// Message Protocol:
//
// Frames are the JSON envelopes defined by the protocol package, one frame per
// WebSocket text message:
//   - Incoming: {"messageType":"register","data":"alice"}
//     and {"messageType":"message","data":"hello"}
//   - Outgoing: {"messageType":"users","dataArray":[...]} on every roster
//     change, and a message frame with a nested delivery record for every
//     relayed chat message
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	http.HandleFunc("/ws", hub.ServeWS)
//
//	ch, err := websocket.Dial(ctx, "ws://localhost:8080/ws")
//	if err != nil {
//		return err
//	}
//	defer ch.Close()
//	ch.Send(frame)
//	for raw := range ch.Frames() {
//		// ...
//	}
//
// Connection Lifecycle:
//
// 1. Client connects to /ws
// 2. Connection registered with hub
// 3. Client sends a register frame naming itself
// 4. Hub broadcasts the new roster and relays messages
// 5. Disconnection triggers cleanup and another roster broadcast
//
// A closed connection ends the client's inbound stream; there is no reconnect.
package websocket
