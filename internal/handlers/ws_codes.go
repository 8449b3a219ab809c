// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room and queue handlers.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError      = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError    = 3001 // Provided auth token was invalid or expired.
	InvalidRoomIDError       = 3003 // Target room ID in the WS URL does not exist or is invalid.
	JoinRefusedError         = 3004 // The room refused the join; the reason code is the close reason.
	InvalidReconnectError    = 3005 // Reconnect token was invalid, expired, superseded, or for another room.
	InvalidQueueRequestError = 3006 // Queue mode or party code was malformed.
)
