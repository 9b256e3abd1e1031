package models

// Session is a point-in-time copy of one conversation.
type Session struct {
	ID         string    `json:"sessionId"`
	Messages   []Message `json:"messages"`
	InputDraft string    `json:"inputDraft"`
	IsLoading  bool      `json:"isLoading"`
}
