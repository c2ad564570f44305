package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/syncpair/syncpair/internal/daemon"
	"github.com/syncpair/syncpair/internal/utils"
	"github.com/syncpair/syncpair/internal/version"
)

// Styles
var (
	titleStyle   = cyan.Bold(true)
	helpStyle    = gray
	spinnerStyle = cyan
)

// runDashboard drives the live terminal dashboard off the daemon's status
// events. It returns when the user quits or the registry closes.
func runDashboard(ctx context.Context, registry *daemon.Registry) error {
	events := registry.Subscribe()
	defer registry.Unsubscribe(events)

	program := tea.NewProgram(newDashboardModel(registry, events), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// muteTerminalLogging reroutes logs away from the terminal the dashboard
// draws on: into the configured log file, or nowhere.
func muteTerminalLogging() {
	logFile := viper.GetString("log-file")
	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return
	}

	abs, err := utils.ResolvePath(logFile)
	if err == nil {
		var file *os.File
		if file, err = os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
			return
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- Messages ---
type statusEventMsg daemon.Event
type eventsClosedMsg struct{}

// dashboardModel holds one row per pairing, updated from registry events.
type dashboardModel struct {
	events  <-chan daemon.Event
	spinner spinner.Model
	rows    map[string]daemon.PairStatus
	width   int
}

func newDashboardModel(registry *daemon.Registry, events <-chan daemon.Event) dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	rows := make(map[string]daemon.PairStatus)
	for _, status := range registry.Snapshot() {
		rows[status.Pair] = status
	}

	return dashboardModel{
		events:  events,
		spinner: s,
		rows:    rows,
	}
}

// waitForStatus delivers the next registry event as a bubbletea message.
func waitForStatus(events <-chan daemon.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return statusEventMsg(event)
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForStatus(m.events))
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusEventMsg:
		m.rows[msg.Pair] = msg.Status
		return m, waitForStatus(m.events)

	case eventsClosedMsg:
		// daemon shut down underneath us
		return m, tea.Quit
	}

	return m, nil
}

func (m dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("syncpair"))
	b.WriteString(" ")
	b.WriteString(gray.Render(version.Short()))
	b.WriteString("\n\n")

	names := make([]string, 0, len(m.rows))
	for name := range m.rows {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := m.rows[name]
		m.renderPair(&b, &status)
	}
	if len(names) == 0 {
		b.WriteString(gray.Render("waiting for pairs…"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Press 'q' to quit."))
	b.WriteString("\n")
	return b.String()
}

func (m dashboardModel) renderPair(b *strings.Builder, status *daemon.PairStatus) {
	switch status.State {
	case daemon.PairStateSyncing:
		b.WriteString(m.spinner.View() + " ")
	case daemon.PairStateError:
		b.WriteString(red.Render("✗") + " ")
	default:
		if status.Runs == 0 {
			b.WriteString(gray.Render("○") + " ")
		} else {
			b.WriteString(green.Render("✓") + " ")
		}
	}
	b.WriteString(cyan.Render(status.Pair))
	b.WriteString("\n")

	if status.Runs > 0 {
		fmt.Fprintf(b, "%s%s (%d runs)\n", gray.Render("  Last    "), humanize.Time(status.LastRun), status.Runs)
	} else {
		fmt.Fprintf(b, "%s%s\n", gray.Render("  Last    "), "never")
	}
	if status.State != daemon.PairStateSyncing && !status.NextRun.IsZero() {
		fmt.Fprintf(b, "%s%s\n", gray.Render("  Next    "), humanize.Time(status.NextRun))
	}
	if rep := status.LastReport; rep != nil && status.LastError == "" {
		fmt.Fprintf(b, "%s%d copied (%s), %d resolved, %d deleted\n",
			gray.Render("  Result  "), rep.FilesCopied, humanize.Bytes(uint64(rep.BytesCopied)),
			rep.ConflictsResolved, rep.FilesDeleted+rep.DirsDeleted)
	}
	if status.LastError != "" {
		fmt.Fprintf(b, "%s%s\n", gray.Render("  Error   "), red.Render(status.LastError))
	}
}
