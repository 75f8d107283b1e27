// Package ws implements the gateway's realtime transport.
//
// # Protocol
//
// Every websocket message is a JSON frame:
//
//	{"event": "send_message", "payload": {...}}
//
// Clients authenticate during the handshake with a JWT, passed as the ?token
// query parameter (browser websocket clients cannot set headers) or a Bearer
// Authorization header. A connection that fails authentication is closed with
// a policy-violation close frame; there is no anonymous mode.
//
// # Events
//
// Client to server: load_conversation, send_message, typing, join_group_chat,
// send_group_message.
//
// Server to client: conversation_loaded, message_sent, new_message,
// user_online, user_offline, group_messages_loaded, new_group_message, error.
//
// Error frames go only to the connection whose operation failed; a bad frame
// never terminates the connection.
//
// # Delivery Model
//
// Writes to a connection funnel through a buffered channel into a single
// writer goroutine. Send never blocks: when the buffer is full the event is
// dropped and counted. Persistence always precedes delivery, so a dropped
// event loses a notification, never a message.
//
// Delivery implements the messaging package's Notifier port, fanning
// persisted messages out via the presence registry and room table.
package ws
