package chat

import (
	"strings"
	"time"

	"github.com/sevigo/medrag/internal/domain"
	"github.com/sevigo/medrag/internal/logger"
)

// Export renders the transcript download and its file name.
func Export(session *domain.Session, now time.Time) (filename, content string) {
	now = now.In(logger.IST)

	var b strings.Builder
	b.WriteString("MEDICAL RAG CHATBOT - CONVERSATION HISTORY\n")
	b.WriteString("Session Date: " + now.Format("2006-01-02 15:04") + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, msg := range session.Messages {
		role := "AI ASSISTANT"
		if msg.Role == domain.RoleUser {
			role = "USER"
		}
		b.WriteString(role + ":\n" + msg.Content + "\n\n")
	}
	return "medical_chat_" + now.Format("20060102_1504") + ".txt", b.String()
}

// Export renders the transcript of a stored session.
func (s *Service) Export(session *domain.Session) (filename, content string) {
	return Export(session, s.now())
}
