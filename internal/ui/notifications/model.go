package notifications

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwangi/pharmos/internal/keys"
	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/internal/notify"
	"github.com/mwangi/pharmos/internal/theme"
)

// FeedChangedMsg tells the panel the feed re-derived and the view is stale.
type FeedChangedMsg struct{}

// OpenSettingsMsg asks the root model to switch to the settings form.
type OpenSettingsMsg struct{}

// RefreshRequestedMsg asks the root model to poke the product watcher.
type RefreshRequestedMsg struct{}

// tabs are the category filters in display order. The first entry is the
// default feed (muted categories hidden); "All" shows everything active,
// muted included.
var tabs = append(
	[]string{"Feed", model.CategoryAll},
	model.Categories...,
)

// row is one rendered line: either a date header or a notification.
type row struct {
	header       string
	notification *model.Notification
}

// Model is the notification panel view.
type Model struct {
	feed *notify.Feed
	keys *keys.KeyMap

	tabIndex    int
	cursor      int
	searchMode  bool
	searchInput textinput.Model
	query       string
	width       int
	height      int
}

// New creates the notification panel.
func New(feed *notify.Feed, k *keys.KeyMap, width, height int) Model {
	si := textinput.New()
	si.Placeholder = "search notifications..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		feed:        feed,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// category returns the filter for the active tab: "" for the default feed.
func (m Model) category() string {
	if m.tabIndex == 0 {
		return ""
	}
	return tabs[m.tabIndex]
}

// visible returns the notifications for the current tab and search query.
func (m Model) visible() []model.Notification {
	return m.feed.Visible(m.category(), m.query)
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case FeedChangedMsg:
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = m.searchInput.Value()
		m.cursor = 0
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.query = ""
		m.cursor = 0
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		m.tabIndex = (m.tabIndex + 1) % len(tabs)
		m.cursor = 0
		return m, nil

	case key.Matches(msg, m.keys.PrevTab):
		m.tabIndex = (m.tabIndex - 1 + len(tabs)) % len(tabs)
		m.cursor = 0
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.Read):
		if n, ok := m.selected(); ok {
			return m, m.mutate(func(ctx context.Context) error {
				return m.feed.MarkAsRead(ctx, n.ID)
			})
		}
		return m, nil

	case key.Matches(msg, m.keys.ReadAll):
		category := m.readScope()
		return m, m.mutate(func(ctx context.Context) error {
			return m.feed.MarkCategoryAsRead(ctx, category)
		})

	case key.Matches(msg, m.keys.Dismiss):
		if n, ok := m.selected(); ok {
			return m, m.mutate(func(ctx context.Context) error {
				return m.feed.Dismiss(ctx, n.ID)
			})
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		category := m.readScope()
		return m, m.mutate(func(ctx context.Context) error {
			return m.feed.ClearCategory(ctx, category)
		})

	case key.Matches(msg, m.keys.Mute):
		category := m.category()
		if category == "" || category == model.CategoryAll {
			return m, nil
		}
		muted := m.feed.IsMuted(category)
		return m, m.mutate(func(ctx context.Context) error {
			if muted {
				return m.feed.Unmute(ctx, category)
			}
			return m.feed.Mute(ctx, category)
		})

	case key.Matches(msg, m.keys.Settings):
		return m, func() tea.Msg { return OpenSettingsMsg{} }

	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg { return RefreshRequestedMsg{} }
	}

	return m, nil
}

// readScope maps the current tab to a mutation scope.
func (m Model) readScope() string {
	if c := m.category(); c != "" {
		return c
	}
	return model.CategoryAll
}

// mutate runs a feed mutation off the UI goroutine.
func (m Model) mutate(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		_ = fn(context.Background())
		return FeedChangedMsg{}
	}
}

// selected returns the notification under the cursor.
func (m Model) selected() (model.Notification, bool) {
	visible := m.visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return model.Notification{}, false
	}
	return visible[m.cursor], true
}

// clampCursor keeps the cursor inside the visible list.
func (m *Model) clampCursor() {
	count := len(m.visible())
	if m.cursor >= count {
		m.cursor = count - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the panel.
func (m Model) View() string {
	sections := []string{m.renderTabs()}

	if m.searchMode {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View()))
	} else if m.query != "" {
		sections = append(sections, theme.HelpStyle.Render(
			fmt.Sprintf(" filtering: %q (esc to clear)", m.query)))
	}

	sections = append(sections, m.renderRows())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderTabs draws the category tab bar with counts.
func (m Model) renderTabs() string {
	counts := m.feed.CategoryCounts()

	rendered := make([]string, 0, len(tabs))
	for i, tab := range tabs {
		label := tab
		switch tab {
		case "Feed":
			label = fmt.Sprintf("Feed %d", len(m.feed.Notifications()))
		default:
			label = fmt.Sprintf("%s %d", tab, counts[tab])
		}

		style := theme.TabStyle
		if i == m.tabIndex {
			style = theme.ActiveTabStyle
		}
		rendered = append(rendered, style.Render(label))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderRows draws the date-grouped notification list.
func (m Model) renderRows() string {
	visible := m.visible()
	if len(visible) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height - 3).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications. All clear.")
	}

	var lines []string
	lastDate := ""
	for i, n := range visible {
		date := n.CreatedAt.Local().Format("Jan 2, 2006")
		if date != lastDate {
			lines = append(lines, theme.DateHeaderStyle.Render(date))
			lastDate = date
		}
		lines = append(lines, m.renderNotification(n, i == m.cursor))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderNotification draws a single feed row.
func (m Model) renderNotification(n model.Notification, selected bool) string {
	glyph := theme.CategoryStyle(n.Category).Render(theme.CategoryGlyph(n.Category))

	marker := "●"
	if n.Read {
		marker = " "
	}

	line := fmt.Sprintf("%s %s %s · %s", marker, glyph, n.Title, n.Description)
	if n.Read {
		line = theme.DimmedStyle.Render(line)
	}

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = width - 4
}
