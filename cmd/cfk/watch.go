package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	cl "coinforge/internal/cli"
	"coinforge/internal/game"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F59E0B")).
			Padding(0, 1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	quitKeys = key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))
)

type streamMsg cl.StreamEvent

type streamClosedMsg struct{}

type watchModel struct {
	events  <-chan cl.StreamEvent
	table   table.Model
	stocks  map[string]game.StockView
	ticks   int
	lastAt  time.Time
	nextAt  time.Time
	lastErr error
}

func newWatchModel(events <-chan cl.StreamEvent) watchModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "SYM", Width: 5},
			{Title: "NAME", Width: 22},
			{Title: "PRICE", Width: 10},
			{Title: "CHANGE", Width: 10},
			{Title: "WEIGHT", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderBottom(true).BorderStyle(lipgloss.NormalBorder())
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#F9FAFB")).Background(lipgloss.Color("#374151"))
	t.SetStyles(styles)
	return watchModel{events: events, table: t, stocks: map[string]game.StockView{}}
}

func waitForEvent(events <-chan cl.StreamEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg(ev)
	}
}

func (m watchModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}
	case streamClosedMsg:
		return m, tea.Quit
	case streamMsg:
		m = m.apply(cl.StreamEvent(msg))
		return m, waitForEvent(m.events)
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) apply(ev cl.StreamEvent) watchModel {
	switch {
	case ev.Err != nil:
		m.lastErr = ev.Err
	case ev.Snapshot != nil:
		m.stocks = make(map[string]game.StockView, len(ev.Snapshot.Stocks))
		for _, s := range ev.Snapshot.Stocks {
			m.stocks[s.Symbol] = s
		}
		m.nextAt = ev.Snapshot.NextUpdate
	default:
		for _, u := range ev.Updates {
			s := m.stocks[u.Symbol]
			s.Symbol = u.Symbol
			s.Name = u.Name
			s.Price = u.Price
			s.Change = u.Price - u.Prev
			s.Weight = u.Weight
			m.stocks[u.Symbol] = s
			m.lastAt = u.TickAt
		}
		if len(ev.Updates) > 0 {
			m.ticks++
			m.nextAt = time.Time{}
		}
	}
	m.table.SetRows(m.rows())
	return m
}

func (m watchModel) rows() []table.Row {
	symbols := make([]string, 0, len(m.stocks))
	for sym := range m.stocks {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	rows := make([]table.Row, 0, len(symbols))
	for _, sym := range symbols {
		s := m.stocks[sym]
		rows = append(rows, table.Row{
			s.Symbol,
			truncate(s.Name, 22),
			fmt.Sprintf("%.2f", s.Price),
			changeArrow(s.Change),
			fmt.Sprintf("%+.2f", s.Weight),
		})
	}
	return rows
}

func changeArrow(v float64) string {
	switch {
	case v > 0:
		return fmt.Sprintf("▲ %.2f", v)
	case v < 0:
		return fmt.Sprintf("▼ %.2f", -v)
	default:
		return "= 0.00"
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📈 Coinforge market"))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.table.View()))
	b.WriteString("\n")

	status := "waiting for the first tick"
	if !m.lastAt.IsZero() {
		status = fmt.Sprintf("ticks seen: %d | last tick %s", m.ticks, m.lastAt.Local().Format("15:04:05"))
	} else if !m.nextAt.IsZero() {
		status = "next update " + m.nextAt.Local().Format("15:04:05")
	}
	b.WriteString(statusStyle.Render(status + " | q to quit"))
	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("stream: " + m.lastErr.Error()))
	}
	return b.String()
}

func runWatch(ctx context.Context, events <-chan cl.StreamEvent) error {
	p := tea.NewProgram(newWatchModel(events), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
