// Package tui is a terminal front end for a searchflow session.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/elastiflow/searchflow"
	"github.com/elastiflow/searchflow/gateway"
	"github.com/elastiflow/searchflow/lifecycle"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	kindStyle   = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
)

type resultsMsg []gateway.Record

type searchEndedMsg struct{}

type loadMsg searchflow.LoadResult[gateway.Record]

type busyMsg bool

type busyEndedMsg struct{}

// App renders search results, combined loads and the busy flag of one session.
type App struct {
	ctx     context.Context
	session *searchflow.Session[gateway.Record]
	results <-chan []gateway.Record
	errs    chan error
	busyCh  <-chan bool

	input   string
	records []gateway.Record
	loaded  []gateway.Record
	busy    bool
	loading bool
	status  string
}

// New creates an App over an opened session. The busy subscription is
// released when the session is torn down.
func New(ctx context.Context, session *searchflow.Session[gateway.Record]) *App {
	a := &App{
		ctx:     ctx,
		session: session,
		errs:    make(chan error, 1),
	}
	a.results = session.SearchResults(ctx, a.errs)
	busyCh, cancel := session.BusyChanges()
	a.busyCh = busyCh
	session.Track(lifecycle.NewFuncSubscription(cancel))
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.waitResults(), a.waitBusy())
}

func (a *App) waitResults() tea.Cmd {
	results := a.results
	return func() tea.Msg {
		records, ok := <-results
		if !ok {
			return searchEndedMsg{}
		}
		return resultsMsg(records)
	}
}

func (a *App) waitBusy() tea.Cmd {
	return func() tea.Msg {
		busy, ok := <-a.busyCh
		if !ok {
			return busyEndedMsg{}
		}
		return busyMsg(busy)
	}
}

func (a *App) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadMsg(<-a.session.TriggerCombinedLoad(a.ctx))
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(m)
	case resultsMsg:
		a.records = m
		a.status = ""
		return a, a.waitResults()
	case searchEndedMsg:
		select {
		case err := <-a.errs:
			a.status = fmt.Sprintf("search failed: %v", err)
		default:
			return a, nil
		}
		if a.ctx.Err() != nil {
			return a, nil
		}
		a.results = a.session.SearchResults(a.ctx, a.errs)
		return a, a.waitResults()
	case loadMsg:
		a.loading = false
		if m.Err != nil {
			a.status = fmt.Sprintf("load failed: %v", m.Err)
			return a, nil
		}
		a.loaded = m.Records
		a.status = fmt.Sprintf("loaded %d records", len(m.Records))
		return a, nil
	case busyMsg:
		a.busy = bool(m)
		return a, a.waitBusy()
	case busyEndedMsg:
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return a, tea.Quit
	case tea.KeyCtrlL:
		if a.loading {
			return a, nil
		}
		a.loading = true
		a.status = "loading characters and planets"
		return a, a.loadCmd()
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.input) == 0 {
			return a, nil
		}
		runes := []rune(a.input)
		a.setInput(string(runes[:len(runes)-1]))
	case tea.KeySpace:
		a.setInput(a.input + " ")
	case tea.KeyRunes:
		a.setInput(a.input + string(m.Runes))
	}
	return a, nil
}

func (a *App) setInput(term string) {
	a.input = term
	a.session.OnInputChanged(term)
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("searchflow"))
	if a.busy {
		b.WriteString(" " + busyStyle.Render("busy"))
	}
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render("search> ") + a.input + "\n\n")
	writeRecords(&b, a.records)
	if len(a.loaded) > 0 {
		b.WriteString("\n" + titleStyle.Render("All records") + "\n")
		writeRecords(&b, a.loaded)
	}
	if a.status != "" {
		style := helpStyle
		if strings.Contains(a.status, "failed") {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(a.status) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("ctrl+l load all | esc quit") + "\n")
	return b.String()
}

func writeRecords(b *strings.Builder, records []gateway.Record) {
	for _, r := range records {
		fmt.Fprintf(b, "  %s %s\n", r.Name, kindStyle.Render(string(r.Kind)))
	}
}

// Run starts the terminal program and tears the session down when it exits.
func Run(ctx context.Context, session *searchflow.Session[gateway.Record]) error {
	defer session.Teardown()
	_, err := tea.NewProgram(New(ctx, session), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
