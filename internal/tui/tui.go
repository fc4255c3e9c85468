// Package tui is an interactive browser for the conversation store. It is a
// three-state machine: Browsing a list, Searching (editing a query), and
// Viewing one conversation. Store and search calls run synchronously inside
// Update, so the model never touches the store concurrently.
package tui

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/rs/zerolog/log"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
	"github.com/ALT-F4-LLC/llm-unify/internal/render"
	"github.com/ALT-F4-LLC/llm-unify/internal/search"
)

// State is the current mode of the browser.
type State int

const (
	Browsing State = iota
	Searching
	Viewing
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Viewing:
		return "viewing"
	default:
		return "browsing"
	}
}

// browseLimit caps how many conversations the list loads.
const browseLimit = 1000

// Store is the part of the store the browser reads.
type Store interface {
	ListConversations(ctx context.Context, opts db.ListOptions) iter.Seq2[model.ConversationSummary, error]
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
}

// Searcher runs a full-text query.
type Searcher interface {
	Search(ctx context.Context, query string, f search.Filters) ([]search.Result, error)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	docStyle    = lipgloss.NewStyle().Margin(1, 2)
)

type conversationItem struct {
	summary model.ConversationSummary
}

func (i conversationItem) Title() string { return titleOrUntitled(i.summary.Title) }

func (i conversationItem) Description() string {
	return fmt.Sprintf("%s · %s · %s",
		i.summary.Provider.DisplayName(),
		english.Plural(i.summary.MessageCount, "message", "messages"),
		humanize.Time(i.summary.CreatedAt),
	)
}

func (i conversationItem) FilterValue() string { return i.summary.Title }

type resultItem struct {
	result search.Result
}

func (i resultItem) Title() string { return titleOrUntitled(i.result.ConversationTitle) }

func (i resultItem) Description() string {
	snippet := strings.NewReplacer(search.Open, "", search.Close, "").Replace(i.result.Snippet)
	return fmt.Sprintf("%s · %s", i.result.Provider.DisplayName(), snippet)
}

func (i resultItem) FilterValue() string { return i.result.ConversationTitle }

func titleOrUntitled(t string) string {
	if t == "" {
		return "(untitled)"
	}
	return t
}

// Model is the bubbletea model for the browser.
type Model struct {
	ctx      context.Context
	store    Store
	searcher Searcher

	state    State
	list     list.Model
	input    textinput.Model
	viewport viewport.Model

	query   string // active search, empty when browsing everything
	current *model.Conversation
	err     error
	width   int
	height  int
}

// New builds a browser showing the newest conversations.
func New(ctx context.Context, store Store, searcher Searcher) (*Model, error) {
	input := textinput.New()
	input.Placeholder = "search messages"
	input.Prompt = "/ "
	input.CharLimit = 256

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Conversations"
	l.Styles.Title = titleStyle
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(true)

	m := &Model{
		ctx:      ctx,
		store:    store,
		searcher: searcher,
		state:    Browsing,
		list:     l,
		input:    input,
		viewport: viewport.New(0, 0),
	}
	if err := m.loadAll(); err != nil {
		return nil, err
	}
	return m, nil
}

// State returns the current state.
func (m *Model) State() State { return m.state }

// Query returns the active search query.
func (m *Model) Query() string { return m.query }

// Current returns the conversation being viewed, if any.
func (m *Model) Current() *model.Conversation { return m.current }

// Err returns the last error shown in the status line.
func (m *Model) Err() error { return m.err }

func (m *Model) loadAll() error {
	items := make([]list.Item, 0)
	for c, err := range m.store.ListConversations(m.ctx, db.ListOptions{Limit: browseLimit}) {
		if err != nil {
			return fmt.Errorf("listing conversations: %w", err)
		}
		items = append(items, conversationItem{summary: c})
	}
	m.list.SetItems(items)
	m.list.Title = "Conversations"
	m.list.ResetSelected()
	m.query = ""
	return nil
}

func (m *Model) runSearch(query string) error {
	results, err := m.searcher.Search(m.ctx, query, search.Filters{Limit: browseLimit})
	if err != nil {
		return err
	}
	items := make([]list.Item, len(results))
	for i, r := range results {
		items[i] = resultItem{result: r}
	}
	m.list.SetItems(items)
	m.list.Title = fmt.Sprintf("Results for %q (%d)", query, len(results))
	m.list.ResetSelected()
	m.query = query
	log.Debug().Str("query", query).Int("results", len(results)).Msg("tui search")
	return nil
}

func (m *Model) open(id string) error {
	conv, err := m.store.GetConversation(m.ctx, id)
	if err != nil {
		return err
	}
	m.current = conv
	m.viewport.SetContent(render.RenderConversation(conv))
	m.viewport.GotoTop()
	return nil
}

func (m *Model) selectedID() string {
	switch it := m.list.SelectedItem().(type) {
	case conversationItem:
		return it.summary.ID
	case resultItem:
		return it.result.ConversationID
	}
	return ""
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

// Update implements tea.Model. Each state handles its own keys.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case Searching:
			return m.updateSearching(msg)
		case Viewing:
			return m.updateViewing(msg)
		default:
			return m.updateBrowsing(msg)
		}
	}
	return m, nil
}

func (m *Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.err = nil
		m.state = Searching
		m.input.SetValue(m.query)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "esc":
		if m.query != "" {
			m.err = m.loadAll()
		}
		return m, nil
	case "enter":
		id := m.selectedID()
		if id == "" {
			return m, nil
		}
		if err := m.open(id); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.state = Viewing
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) updateSearching(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.state = Browsing
		return m, nil
	case "enter":
		query := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.state = Browsing
		if query == "" {
			m.err = m.loadAll()
			return m, nil
		}
		m.err = m.runSearch(query)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateViewing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "backspace":
		m.state = Browsing
		m.current = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	h, v := docStyle.GetFrameSize()
	m.list.SetSize(width-h, height-v-2)
	m.input.Width = max(width-h-4, 10)
	m.viewport.Width = width - h
	m.viewport.Height = max(height-v-2, 1)
}

// View implements tea.Model.
func (m *Model) View() string {
	var body, status string
	switch m.state {
	case Viewing:
		title := ""
		if m.current != nil {
			title = m.current.TitleOrUntitled()
		}
		body = titleStyle.Render(title) + "\n" + m.viewport.View()
		status = fmt.Sprintf("%3.f%% · esc back · ctrl+c quit", m.viewport.ScrollPercent()*100)
	case Searching:
		body = m.list.View()
		status = m.input.View()
	default:
		body = m.list.View()
		status = "/ search · enter open · esc all · q quit"
	}

	if m.err != nil {
		status = errorStyle.Render("Error: "+m.err.Error()) + "  " + status
	} else {
		status = statusStyle.Render(status)
	}
	return docStyle.Render(body + "\n" + status)
}

// Run starts the browser full screen and blocks until it exits.
func Run(ctx context.Context, store Store, searcher Searcher) error {
	m, err := New(ctx, store, searcher)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
