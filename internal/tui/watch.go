// Package tui implements the wayfarer watch terminal interface: a live
// view of a running daemon fed by its introspection endpoint.
package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fieldrover/wayfarer/internal/introspect"
	"github.com/fieldrover/wayfarer/internal/models"
)

const (
	refreshEvery = time.Second
	maxEvents    = 12
	minWidth     = 44
	minHeight    = 12
)

// Run launches the watch program against a daemon's introspection address.
func Run(addr string) error {
	program := tea.NewProgram(newModel(newClient(addr)), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type client struct {
	base string
	http *http.Client
}

func newClient(addr string) *client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *client) get(path string, v any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

type refreshMsg struct {
	status introspect.Status
	events []models.Event
	err    error
	at     time.Time
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshCmd polls the daemon once.
func (c *client) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		msg := refreshMsg{at: time.Now()}
		if err := c.get("/status", &msg.status); err != nil {
			msg.err = err
			return msg
		}
		if err := c.get(fmt.Sprintf("/events?n=%d", maxEvents), &msg.events); err != nil {
			msg.err = err
		}
		return msg
	}
}

type model struct {
	client *client
	styles Styles

	width  int
	height int
	now    time.Time

	ready     bool
	status    introspect.Status
	events    []models.Event
	fetchErr  error
	lastFetch time.Time
}

func newModel(c *client) model {
	return model{
		client: c,
		styles: DefaultStyles(),
		now:    time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.client.refreshCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.client.refreshCmd()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.now = time.Time(msg)
		return m, tea.Batch(tickCmd(), m.client.refreshCmd())
	case refreshMsg:
		m.fetchErr = msg.err
		if msg.err == nil {
			m.ready = true
			m.status = msg.status
			m.events = msg.events
			m.lastFetch = msg.at
		}
	}
	return m, nil
}
