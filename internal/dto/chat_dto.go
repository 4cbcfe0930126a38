package dto

// ChatRequest keeps the camelCase field names existing clients send.
type ChatRequest struct {
	SessionId           string    `json:"sessionId" validate:"required,max=128"`
	Message             string    `json:"message" validate:"max=32000"`
	Type                string    `json:"type" validate:"omitempty,oneof=text image document adapter"`
	ConversationContext []TurnDTO `json:"conversation_context,omitempty" validate:"max=100,dive"`
	AdapterId           string    `json:"adapter_id,omitempty" validate:"max=128"`

	// Attachment and document context
	FileUrl            string `json:"fileUrl,omitempty"`
	FileName           string `json:"fileName,omitempty"`
	FileType           string `json:"fileType,omitempty"`
	ExtractedText      string `json:"extractedText,omitempty"`
	DocumentType       string `json:"documentType,omitempty"`
	ContextEnabled     bool   `json:"contextEnabled,omitempty"`
	ContextInstruction string `json:"contextInstruction,omitempty"`
}

type TurnDTO struct {
	Role     string `json:"role" validate:"required"`
	Content  string `json:"content"`
	FileUrl  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

type IntentRequest struct {
	Message string `json:"message" validate:"required"`
}

type IntentResponse struct {
	Intent string `json:"intent"`
}

// ChatFrame is one websocket message of a streamed reply.
type ChatFrame struct {
	Type    string `json:"type"` // "chunk" | "error" | "done"
	Content string `json:"content,omitempty"`
	Branch  string `json:"branch,omitempty"`
}
