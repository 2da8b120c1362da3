package a2a

// Role identifies the author of a message.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// Message is one exchange unit: a work request, a status narration, or a
// human response. Messages are never mutated after creation and belong to
// the task they are attached to.
type Message struct {
	Kind       string         `json:"kind"` // always "message"
	MessageID  string         `json:"messageId"`
	Role       Role           `json:"role"`
	Parts      []Part         `json:"parts"`
	ContextID  string         `json:"contextId,omitempty"`
	TaskID     string         `json:"taskId,omitempty"`
	Extensions []string       `json:"extensions,omitempty"` // capability URIs
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// KindMessage is the discriminant value for Message.
const KindMessage = "message"

// Validate checks the message envelope and every part.
func (m *Message) Validate() *ValidationError {
	if m.Kind != KindMessage {
		return newValidationError("message.kind", `"message"`, m.Kind)
	}
	if m.MessageID == "" {
		return newValidationError("message.messageId", "non-empty string", "empty")
	}
	if m.Role != RoleAgent && m.Role != RoleUser {
		return newValidationError("message.role", `"agent" or "user"`, string(m.Role))
	}
	if len(m.Parts) == 0 {
		return newValidationError("message.parts", "at least one part", "empty")
	}
	for i, p := range m.Parts {
		if verr := p.Validate(); verr != nil {
			return verr.prefixed("message.parts", i)
		}
	}
	return nil
}

// FirstText returns the text of the first text part, if any.
func (m *Message) FirstText() (string, bool) {
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			return p.Text, true
		}
	}
	return "", false
}

// FirstData returns the payload of the first data part, if any.
func (m *Message) FirstData() (map[string]any, bool) {
	for _, p := range m.Parts {
		if p.Kind == PartKindData {
			return p.Data, true
		}
	}
	return nil, false
}
