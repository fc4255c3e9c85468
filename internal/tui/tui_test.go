package tui

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/search"
)

type fakeStore struct {
	convs map[string]*model.Conversation
	order []string
	lists int
}

func newFakeStore() *fakeStore {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &fakeStore{convs: map[string]*model.Conversation{}}
	for _, id := range []string{"c2", "c1"} {
		s.convs[id] = &model.Conversation{
			ID:        id,
			Provider:  model.ProviderClaude,
			Title:     "title " + id,
			CreatedAt: created,
			Messages:  []model.Message{{ID: id + "-m0", ConversationID: id, Role: model.RoleUser, Content: "hello " + id}},
		}
		s.order = append(s.order, id)
	}
	return s
}

func (s *fakeStore) ListConversations(ctx context.Context, opts db.ListOptions) iter.Seq2[model.ConversationSummary, error] {
	s.lists++
	return func(yield func(model.ConversationSummary, error) bool) {
		for _, id := range s.order {
			c := s.convs[id]
			sum := model.ConversationSummary{ID: c.ID, Provider: c.Provider, Title: c.Title, CreatedAt: c.CreatedAt, MessageCount: len(c.Messages)}
			if !yield(sum, nil) {
				return
			}
		}
	}
}

func (s *fakeStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, ok := s.convs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

type fakeSearcher struct {
	queries []string
	results []search.Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, _ search.Filters) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel(t *testing.T, store *fakeStore, searcher *fakeSearcher) *Model {
	t.Helper()
	m, err := New(context.Background(), store, searcher)
	require.NoError(t, err)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func typeText(m *Model, text string) {
	for _, r := range text {
		m.Update(key(string(r)))
	}
}

func TestStartsBrowsingNewestFirst(t *testing.T) {
	m := newModel(t, newFakeStore(), &fakeSearcher{})

	assert.Equal(t, Browsing, m.State())
	assert.Equal(t, "c2", m.selectedID())
	assert.Contains(t, m.View(), "title c2")
}

func TestEnterOpensAndEscReturns(t *testing.T) {
	m := newModel(t, newFakeStore(), &fakeSearcher{})

	m.Update(key("enter"))
	require.Equal(t, Viewing, m.State())
	require.NotNil(t, m.Current())
	assert.Equal(t, "c2", m.Current().ID)

	m.Update(key("esc"))
	assert.Equal(t, Browsing, m.State())
	assert.Nil(t, m.Current())
}

func TestSearchFlow(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{{
		ConversationID:    "c1",
		ConversationTitle: "title c1",
		Provider:          model.ProviderClaude,
		Snippet:           "<mark>hello</mark> c1",
	}}}
	m := newModel(t, newFakeStore(), searcher)

	m.Update(key("/"))
	require.Equal(t, Searching, m.State())

	typeText(m, "hello")
	m.Update(key("enter"))

	assert.Equal(t, Browsing, m.State())
	assert.Equal(t, []string{"hello"}, searcher.queries)
	assert.Equal(t, "hello", m.Query())
	assert.Equal(t, "c1", m.selectedID())

	m.Update(key("enter"))
	require.Equal(t, Viewing, m.State())
	assert.Equal(t, "c1", m.Current().ID)
}

func TestSearchEscCancelsWithoutQuerying(t *testing.T) {
	searcher := &fakeSearcher{}
	m := newModel(t, newFakeStore(), searcher)

	m.Update(key("/"))
	typeText(m, "abc")
	m.Update(key("esc"))

	assert.Equal(t, Browsing, m.State())
	assert.Empty(t, searcher.queries)
	assert.Empty(t, m.Query())
}

func TestEscClearsSearchResults(t *testing.T) {
	store := newFakeStore()
	searcher := &fakeSearcher{results: []search.Result{{ConversationID: "c1"}}}
	m := newModel(t, store, searcher)

	m.Update(key("/"))
	typeText(m, "x")
	m.Update(key("enter"))
	require.Equal(t, "x", m.Query())

	listsBefore := store.lists
	m.Update(key("esc"))
	assert.Empty(t, m.Query())
	assert.Equal(t, listsBefore+1, store.lists)
	assert.Equal(t, "c2", m.selectedID())
}

func TestSearchErrorStaysBrowsing(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("boom")}
	m := newModel(t, newFakeStore(), searcher)

	m.Update(key("/"))
	typeText(m, "x")
	m.Update(key("enter"))

	assert.Equal(t, Browsing, m.State())
	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "boom")
}

func TestQuitKeys(t *testing.T) {
	m := newModel(t, newFakeStore(), &fakeSearcher{})

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	m.Update(key("/"))
	_, cmd = m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestQInSearchIsText(t *testing.T) {
	m := newModel(t, newFakeStore(), &fakeSearcher{})

	m.Update(key("/"))
	_, cmd := m.Update(key("q"))
	if cmd != nil {
		assert.NotEqual(t, tea.Quit(), cmd())
	}
	assert.Equal(t, Searching, m.State())
	assert.Equal(t, "q", m.input.Value())
}
