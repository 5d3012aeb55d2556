package models

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// SearchArguments is the decoded payload of a search_cruises tool call.
// All fields are optional; zero values mean "no filter on this axis".
type SearchArguments struct {
	Query    string `json:"query,omitempty"`
	MaxPrice int    `json:"maxPrice,omitempty"`
	Duration string `json:"duration,omitempty"`
}
