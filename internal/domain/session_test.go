package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/medrag/internal/domain"
)

func TestSession_Metrics(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := domain.NewSession("s1", start)

	s.Append(domain.Message{Role: domain.RoleUser, Content: "What is fever?"})
	s.Append(domain.Message{Role: domain.RoleAssistant, Content: "A raised temperature."})
	s.Append(domain.Message{Role: domain.RoleUser, Content: "And anemia?"})

	m := s.Metrics(start.Add(7*time.Minute + 59*time.Second))
	assert.Equal(t, domain.Metrics{Questions: 2, SessionMinutes: 7, TotalMessages: 3, Exchanges: 1}, m)
	assert.Equal(t, "What is fever?", s.Messages[0].Content)

	clone := s.Clone()
	s.Clear(start.Add(time.Hour))
	assert.Empty(t, s.Messages)
	assert.Zero(t, s.QuestionCount)
	assert.Equal(t, start.Add(time.Hour), s.StartedAt)
	assert.Len(t, clone.Messages, 3)

	assert.Zero(t, s.Metrics(start).SessionMinutes)
}
