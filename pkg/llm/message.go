package llm

import "strings"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps wire roles onto the three known roles. Gemini-style "model"
// becomes assistant; anything unrecognised is treated as user input.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assistant", "model":
		return RoleAssistant
	case "system":
		return RoleSystem
	default:
		return RoleUser
	}
}

// Attachment references a file that accompanies a turn.
type Attachment struct {
	URL  string `json:"url"`
	Kind string `json:"kind"` // "image" | "document"
	Name string `json:"name,omitempty"`
}

// Message represents one conversation turn in a provider-agnostic format.
// Messages are treated as immutable once appended to a history.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}
