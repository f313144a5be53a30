package domain

import "time"

// Sender identifies who wrote a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// Label is the speaker name used when a transcript is rendered as prose.
func (s Sender) Label() string {
	if s == SenderUser {
		return "Student"
	}
	return "AI Tutor"
}

// Message is one entry of a chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}
