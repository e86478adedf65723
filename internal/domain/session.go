// Package domain holds the chat session model shared by the store, chat and
// api packages.
package domain

import (
	"slices"
	"time"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a conversation in insertion order.
type Session struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	Messages      []Message `json:"messages"`
	QuestionCount int       `json:"question_count"`
}

// Metrics summarizes a session for the dashboard.
type Metrics struct {
	Questions      int `json:"questions"`
	SessionMinutes int `json:"session_minutes"`
	TotalMessages  int `json:"total_messages"`
	Exchanges      int `json:"exchanges"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{ID: id, StartedAt: now}
}

// Append adds a message; user messages count as questions.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
	if m.Role == RoleUser {
		s.QuestionCount++
	}
}

// Clear drops the messages and restarts the session clock.
func (s *Session) Clear(now time.Time) {
	s.Messages = nil
	s.QuestionCount = 0
	s.StartedAt = now
}

// Metrics reports whole minutes since start and exchanges as messages / 2.
func (s *Session) Metrics(now time.Time) Metrics {
	minutes := 0
	if d := now.Sub(s.StartedAt); d > 0 {
		minutes = int(d / time.Minute)
	}
	return Metrics{
		Questions:      s.QuestionCount,
		SessionMinutes: minutes,
		TotalMessages:  len(s.Messages),
		Exchanges:      len(s.Messages) / 2,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = slices.Clone(s.Messages)
	return &c
}
