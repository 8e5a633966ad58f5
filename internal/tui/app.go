package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// App is the top-level Bubble Tea model that routes between pages and
// feeds received records into the shared Feed.
type App struct {
	feed       *Feed
	keys       KeyMap
	pages      map[string]Page
	order      []string
	activePage string
	width      int
	height     int
}

// NewApp creates a new App with the given pages. The first page is the default.
func NewApp(feed *Feed, pages ...Page) *App {
	pageMap := make(map[string]Page, len(pages))
	order := make([]string, 0, len(pages))
	var firstID string
	for i, p := range pages {
		pageMap[p.ID()] = p
		order = append(order, p.ID())
		if i == 0 {
			firstID = p.ID()
		}
	}
	return &App{
		feed:       feed,
		keys:       DefaultKeyMap(),
		pages:      pageMap,
		order:      order,
		activePage: firstID,
	}
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.feed.Next()}
	if p, ok := a.pages[a.activePage]; ok {
		cmds = append(cmds, p.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case RecordMsg:
		a.feed.Add(msg.Received)
		return a, a.feed.Next()
	case FeedClosedMsg:
		a.feed.closed = true
		return a, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit), key.Matches(msg, a.keys.ForceQuit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Pause):
			a.feed.TogglePause()
			return a, nil
		case key.Matches(msg, a.keys.NextPage):
			a.activePage = a.nextPage()
			return a, a.pages[a.activePage].Init()
		}
	}

	p, ok := a.pages[a.activePage]
	if !ok {
		return a, nil
	}

	cmd, nav := p.Update(msg)
	if nav != nil {
		if _, exists := a.pages[nav.PageID]; exists {
			a.activePage = nav.PageID
			return a, tea.Batch(cmd, a.pages[a.activePage].Init())
		}
	}
	return a, cmd
}

func (a *App) nextPage() string {
	for i, id := range a.order {
		if id == a.activePage {
			return a.order[(i+1)%len(a.order)]
		}
	}
	return a.activePage
}

// ActivePage returns the ID of the page being shown.
func (a *App) ActivePage() string { return a.activePage }

func (a *App) View() string {
	if p, ok := a.pages[a.activePage]; ok {
		return p.View(a.width, a.height)
	}
	return "No active page"
}
