package domain

import "time"

// MessageRole enumerates chat transcript roles.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// MessagePart is one segment of a chat message body. Artifact placeholders
// live in text parts as serialized JSON.
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Attachment references a generated file carried alongside a message.
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// ChatMessage is one transcript entry. Messages are upserted by ID so a
// placeholder written at generation start can be rewritten in place once the
// provider reports completion.
type ChatMessage struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chat_id"`
	Role        MessageRole   `json:"role"`
	Parts       []MessagePart `json:"parts"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Chat is the parent row for a transcript. Created lazily by the save-message
// path when a message arrives for an unknown chat.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
