// Package chat runs questions through the QA chain and keeps the per-session
// conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/medrag/chains"
	"github.com/sevigo/medrag/internal/domain"
	"github.com/sevigo/medrag/internal/store"
	"github.com/sevigo/medrag/schema"
)

var (
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("chat: question is required")
	// ErrChainNotInitialized is returned when the pipeline failed to build.
	ErrChainNotInitialized = errors.New("chat: QA chain not initialized")
)

// Messages shown to users for the sentinel errors above.
const (
	MsgQuestionRequired    = "Question is required"
	MsgChainNotInitialized = "QA Chain not initialized"
)

// TroubleshootingTips are shown next to a failed answer.
var TroubleshootingTips = []string{
	"Check that HF_TOKEN is set and valid",
	"Check that the vector store is properly initialized (run the ingest command)",
	"Check network connectivity to the model endpoint",
}

// Outcome labels passed to an Observer.
const (
	OutcomeSuccess        = "success"
	OutcomeError          = "error"
	OutcomeNotInitialized = "not_initialized"
)

// Observer is notified once per answered question.
type Observer interface {
	ObserveQA(outcome string, duration time.Duration)
}

// Source identifies a retrieved passage.
type Source struct {
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources,omitempty"`
}

// GenerationError wraps a chain failure. Error() renders the message shown
// to users.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "Error generating response: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

type Service struct {
	repo     store.Repository
	chain    chains.Chain
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the service. chain may be nil, in which case every
// question fails with ErrChainNotInitialized.
func NewService(repo store.Repository, chain chains.Chain, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		chain:  chain,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	return s
}

// Ready reports whether a chain is available.
func (s *Service) Ready() bool { return s.chain != nil }

func (s *Service) NewSession(ctx context.Context) (*domain.Session, error) {
	session := domain.NewSession(uuid.NewString(), s.now())
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *Service) Session(ctx context.Context, id string) (*domain.Session, error) {
	return s.repo.GetSession(ctx, id)
}

// Clear resets the session's messages, counter and start time.
func (s *Service) Clear(ctx context.Context, id string) error {
	return s.repo.ClearSession(ctx, id, s.now())
}

// Query answers a question without recording it in any session.
func (s *Service) Query(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	return s.answer(ctx, question)
}

// Ask records the question in the session, runs the chain and records the
// reply. A failed answer is not recorded.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if err := s.repo.AppendMessage(ctx, sessionID, domain.Message{
		Role:      domain.RoleUser,
		Content:   question,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	answer, err := s.answer(ctx, question)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AppendMessage(ctx, sessionID, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   answer.Text,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	return answer, nil
}

func (s *Service) answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	if s.chain == nil {
		s.observe(OutcomeNotInitialized, start)
		s.logger.ErrorContext(ctx, MsgChainNotInitialized)
		return nil, ErrChainNotInitialized
	}

	var (
		text string
		docs []schema.Document
		err  error
	)
	if sc, ok := s.chain.(chains.SourcedChain); ok {
		text, docs, err = sc.CallWithSources(ctx, question)
	} else {
		text, err = s.chain.Call(ctx, question)
	}
	if err != nil {
		s.observe(OutcomeError, start)
		s.logger.ErrorContext(ctx, "Error generating response", "error", err, "duration", time.Since(start))
		return nil, &GenerationError{Err: err}
	}

	s.observe(OutcomeSuccess, start)
	s.logger.InfoContext(ctx, "Question answered",
		"question_length", len(question),
		"sources", len(docs),
		"duration", time.Since(start),
	)
	return &Answer{Text: strings.TrimSpace(text), Sources: sourcesOf(docs)}, nil
}

func (s *Service) observe(outcome string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveQA(outcome, time.Since(start))
	}
}

func sourcesOf(docs []schema.Document) []Source {
	var out []Source
	seen := make(map[Source]bool)
	for _, doc := range docs {
		src := Source{Source: doc.Source()}
		switch p := doc.Metadata["page"].(type) {
		case int:
			src.Page = p
		case int64:
			src.Page = int(p)
		case float64:
			src.Page = int(p)
		}
		if sec, ok := doc.Metadata["section"].(string); ok {
			src.Section = sec
		}
		if src.Source == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}
