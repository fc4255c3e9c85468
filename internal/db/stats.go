package db

import (
	"context"
	"fmt"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// Stats returns conversation and message totals with a per-provider breakdown
// covering every known provider, in Providers() order.
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	st := &model.Stats{}

	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&st.Conversations); err != nil {
		return nil, fmt.Errorf("counting conversations: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.Messages); err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT c.provider, COUNT(DISTINCT c.id), COUNT(m.row_id)
		 FROM conversations c
		 LEFT JOIN messages m ON m.conversation_id = c.id
		 GROUP BY c.provider`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting by provider: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Provider]model.ProviderCount)
	for rows.Next() {
		var pc model.ProviderCount
		var provider string
		if err := rows.Scan(&provider, &pc.Conversations, &pc.Messages); err != nil {
			return nil, fmt.Errorf("scanning provider counts: %w", err)
		}
		pc.Provider = model.Provider(provider)
		counts[pc.Provider] = pc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range model.Providers() {
		pc, ok := counts[p]
		if !ok {
			pc = model.ProviderCount{Provider: p}
		}
		st.ByProvider = append(st.ByProvider, pc)
	}

	return st, nil
}
