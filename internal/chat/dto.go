package chat

// Operation payloads decoded from client frames.

type InitConversationPayload struct {
	UserID string `json:"userId"`
}

type ConversationActionPayload struct {
	ConversationID string `json:"conversationId"`
}

type LoadConversationsPayload struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"search,omitempty"`
}

type LoadSingleConversationPayload struct {
	ConversationID string `json:"conversationId"`
	Page           int    `json:"page"`
	Limit          int    `json:"limit"`
}

type SendMessagePayload struct {
	ConversationID string      `json:"conversationId"`
	Content        string      `json:"content,omitempty"`
	Type           MessageType `json:"type,omitempty"`
	FileID         string      `json:"fileId,omitempty"`
}

type MarkReadPayload struct {
	ConversationID string `json:"conversationId"`
}
