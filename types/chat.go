package types

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in the conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
