// Package app wires the notification feed, product watcher, and views into
// the root terminal model.
package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwangi/pharmos/internal/keys"
	"github.com/mwangi/pharmos/internal/notify"
	"github.com/mwangi/pharmos/internal/store"
	appsync "github.com/mwangi/pharmos/internal/sync"
	"github.com/mwangi/pharmos/internal/theme"
	"github.com/mwangi/pharmos/internal/ui/notifications"
	"github.com/mwangi/pharmos/internal/ui/settingsform"
)

// feedUpdatedMsg is sent whenever the feed completes a derivation pass.
type feedUpdatedMsg struct{}

// ViewState represents the current active view.
type ViewState int

const (
	ViewFeed ViewState = iota
	ViewSettings
)

// Model is the root Bubble Tea model.
type Model struct {
	currentView ViewState
	bk          store.Bookkeeping
	feed        *notify.Feed
	watcher     *appsync.Watcher
	keys        *keys.KeyMap

	panel    notifications.Model
	settings settingsform.Model

	width  int
	height int
	ready  bool
}

// New creates the root model.
func New(bk store.Bookkeeping, feed *notify.Feed, watcher *appsync.Watcher) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView: ViewFeed,
		bk:          bk,
		feed:        feed,
		watcher:     watcher,
		keys:        k,
		panel:       notifications.New(feed, k, 80, 24),
	}
}

// Init starts listening for feed updates.
func (m Model) Init() tea.Cmd {
	return m.waitForFeed()
}

// waitForFeed blocks on the feed's update channel and reports each pass.
func (m Model) waitForFeed() tea.Cmd {
	updates := m.feed.Updates()
	return func() tea.Msg {
		<-updates
		return feedUpdatedMsg{}
	}
}

// Update routes messages to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.panel.SetSize(msg.Width, msg.Height-2)
		m.ready = true
		return m, nil

	case feedUpdatedMsg:
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(notifications.FeedChangedMsg{})
		return m, tea.Batch(cmd, m.waitForFeed())

	case notifications.OpenSettingsMsg:
		m.currentView = ViewSettings
		m.settings = settingsform.New(m.bk)
		return m, m.settings.Init()

	case notifications.RefreshRequestedMsg:
		m.watcher.Poke()
		return m, nil

	case settingsform.DoneMsg:
		m.currentView = ViewFeed
		return m, nil

	case tea.KeyMsg:
		if m.currentView == ViewFeed {
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}
	}

	return m.routeToView(msg)
}

// routeToView forwards a message to whichever view is active.
func (m Model) routeToView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
	default:
		m.panel, cmd = m.panel.Update(msg)
	}
	return m, cmd
}

// View renders the current frame.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var content string
	switch m.currentView {
	case ViewSettings:
		content = m.settings.View()
	default:
		content = m.panel.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		content,
		m.renderStatusBar(),
	)
}

// renderHeader draws the branding bar with the unread badge and, when the
// backend is unreachable, a stale-data warning.
func (m Model) renderHeader() string {
	branding := m.bk.GetBranding()

	title := theme.HeaderStyle.Render(branding.PharmacyName)

	badge := ""
	if unread := m.feed.UnreadCount(); unread > 0 {
		badge = theme.UnreadBadgeStyle.Render(fmt.Sprintf("%d unread", unread))
	}

	stale := ""
	if m.feed.Err() != nil {
		stale = theme.ErrorStyle.Render("offline: showing last known data")
	}

	right := lipgloss.JoinHorizontal(lipgloss.Top, stale, badge)

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, title, filler, right)
}

// renderStatusBar draws the keyboard hints.
func (m Model) renderStatusBar() string {
	hints := "tab categories · enter read · x dismiss · A all read · m mute · / search · s settings · r refresh · q quit"
	if m.currentView == ViewSettings {
		hints = "esc cancel · enter next field"
	}

	rendered := theme.StatusBarStyle.Render(hints)
	gap := m.width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}
	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}
