package events

import "encoding/json"

// Event names pushed to clients over the realtime connection.
const (
	EventAuth               = "auth"
	EventSuccess            = "success"
	EventError              = "error"
	EventConversationUpdate = "conversation-update"
	EventConversationList   = "conversation-list-response"
	EventConversation       = "conversation-response"
	EventNewMessage         = "new-message"
	EventCallInitiated      = "call-initiated"
	EventCallOngoing        = "call-ongoing"
	EventCallEnded          = "call-ended"
	EventCallMissed         = "call-missed"
	EventNotification       = "notification"
)

// Operations a client may invoke over the same connection.
const (
	OpConversationInit    = "conversation:init"
	OpConversationList    = "conversation:list"
	OpConversationLoad    = "conversation:load"
	OpConversationArchive = "conversation:archive"
	OpConversationBlock   = "conversation:block"
	OpConversationUnblock = "conversation:unblock"
	OpConversationDelete  = "conversation:delete"
	OpMessageSend         = "message:send"
	OpMessageRead         = "message:read"
	OpCallInitiate        = "call:initiate"
	OpCallAccept          = "call:accept"
	OpCallDecline         = "call:decline"
	OpCallEnd             = "call:end"
	OpNotificationRead    = "notification:read"
)

// Frame is one client request on the wire.
type Frame struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorBody carries the taxonomy kind alongside a human-readable message.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Envelope is the uniform success/error wrapper used for both operation
// responses and server-initiated events.
type Envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// Outbound is an envelope tagged with the event it is delivered under.
type Outbound struct {
	Event string `json:"event"`
	Envelope
}

func Success(data any) Envelope {
	return Envelope{OK: true, Data: data}
}

func Failure(kind, message string) Envelope {
	return Envelope{OK: false, Error: &ErrorBody{Kind: kind, Message: message}}
}
