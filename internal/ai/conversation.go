package ai

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// SystemInstruction is sent ahead of every classification prompt.
const SystemInstruction = "You are an email automation assistant. Follow the user's custom " +
	"instructions and only select from the allowed actions provided."

// Message represents a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewConversation returns the message list for one classification: the
// fixed system instruction followed by the prompt. Classifications never
// share history.
func NewConversation(prompt string) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemInstruction},
		{Role: RoleUser, Content: prompt},
	}
}
