package allm

// Role identifies the author of a message turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one role-tagged turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
