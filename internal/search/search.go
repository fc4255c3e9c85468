// Package search runs full-text queries against the conversation store and
// turns matched messages into ranked, highlighted results.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

const (
	// DefaultLimit applies when Filters.Limit is zero.
	DefaultLimit = 10

	// DefaultSnippetRadius is the context kept either side of a match.
	DefaultSnippetRadius = 80
)

// Filters narrows a search.
type Filters struct {
	Provider model.Provider
	Limit    int
}

// Result is one matching conversation, represented by its best message.
type Result struct {
	ConversationID    string         `json:"conversation_id"`
	ConversationTitle string         `json:"conversation_title"`
	Provider          model.Provider `json:"provider"`
	CreatedAt         time.Time      `json:"created_at"`
	MessageID         string         `json:"message_id"`
	Role              model.Role     `json:"role"`
	Score             float64        `json:"score"`
	Snippet           string         `json:"snippet"`
}

// Matcher is the store capability the engine queries.
type Matcher interface {
	MatchMessages(ctx context.Context, expr string, opts db.MatchOptions) ([]db.MessageMatch, error)
}

// Engine builds queries, ranks and highlights.
type Engine struct {
	matcher       Matcher
	snippetRadius int
}

// New returns an engine over m.
func New(m Matcher) *Engine {
	return &Engine{matcher: m, snippetRadius: DefaultSnippetRadius}
}

// Search returns results ordered by relevance (higher Score first) with ties
// broken by conversation recency. At most Filters.Limit results are computed.
func (e *Engine) Search(ctx context.Context, query string, f Filters) ([]Result, error) {
	if f.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative, got %d", f.Limit)
	}
	limit := f.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if f.Provider != "" {
		if err := model.ValidateProvider(f.Provider); err != nil {
			return nil, err
		}
	}

	expr, terms, err := BuildQuery(query)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("expr", expr).Str("provider", string(f.Provider)).Int("limit", limit).Msg("search")

	matches, err := e.matcher.MatchMessages(ctx, expr, db.MatchOptions{Provider: f.Provider, Limit: limit})
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			ConversationID:    m.ConversationID,
			ConversationTitle: m.Title,
			Provider:          m.Provider,
			CreatedAt:         m.CreatedAt,
			MessageID:         m.MessageID,
			Role:              m.Role,
			Score:             -m.Rank,
			Snippet:           Snippet(m.Content, terms, e.snippetRadius),
		}
	}
	return results, nil
}
