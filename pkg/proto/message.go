package proto

import (
	"fmt"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser indicates a message from the human candidate.
	RoleUser Role = "user"

	// RoleAssistant indicates a message from the coach.
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role is one of the two allowed values.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable entry in the conversation log.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage"` // stage active when the message was produced
}

// NewMessage constructs a Message, rejecting unknown roles.
func NewMessage(role Role, content string, stage Stage) (Message, error) {
	if !role.IsValid() {
		return Message{}, fmt.Errorf("invalid message role: %q (must be 'user' or 'assistant')", role)
	}
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Stage:     stage,
	}, nil
}
