// Command gridcascade-tui is an interactive terminal client for a running
// gridcascade-server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/gridcascade/pkg/api"
	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/risk"
	"github.com/dd0wney/gridcascade/pkg/validation"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB000")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FFB000")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)

	levelStyles = map[risk.Level]lipgloss.Style{
		risk.LevelLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true),
		risk.LevelModerate: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")).Bold(true),
		risk.LevelElevated: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800")).Bold(true),
		risk.LevelSevere:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	}
)

type view int

const (
	dashboardView view = iota
	candidatesView
	simulateView
	scenariosView
	viewCount
)

var tabNames = []string{"Dashboard", "Candidates", "Simulate", "Scenarios"}

type keyMap struct {
	Tab       key.Binding
	ShiftTab  key.Binding
	Enter     key.Binding
	Refresh   key.Binding
	Scenario  key.Binding
	Recompute key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "simulate"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "refresh"),
	),
	Scenario: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "next scenario"),
	),
	Recompute: key.NewBinding(
		key.WithKeys("ctrl+b"),
		key.WithHelp("ctrl+b", "recompute centrality"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Refresh, k.Scenario, k.Recompute},
		{k.Quit},
	}
}

// Messages carrying API responses back into Update.
type (
	tickMsg       time.Time
	riskMsg       struct{ assessment *risk.Assessment }
	statusMsg     struct{ status *api.CentralityStatusResponse }
	candidatesMsg struct{ ranking *ranking.Ranking }
	scenariosMsg  struct{ scenarios *api.ScenariosResponse }
	simulateMsg   struct{ result *cascade.Result }
	recomputeMsg  struct{}
	errMsg        struct{ err error }
)

type model struct {
	client      *client
	refresh     time.Duration
	currentView view

	patientZero textinput.Model
	scenarioIdx int
	candidates  table.Model
	scenarios   table.Model
	cascade     table.Model
	help        help.Model
	keys        keyMap

	assessment *risk.Assessment
	status     *api.CentralityStatusResponse
	ranking    *ranking.Ranking
	result     *cascade.Result

	width      int
	height     int
	message    string
	messageErr bool
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FFB000")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func initialModel(c *client, refresh time.Duration) model {
	ti := textinput.New()
	ti.Placeholder = "SUB-001"
	ti.CharLimit = 128
	ti.Width = 40

	return model{
		client:      c,
		refresh:     refresh,
		currentView: dashboardView,
		patientZero: ti,
		candidates: newTable([]table.Column{
			{Title: "#", Width: 4},
			{Title: "Node", Width: 16},
			{Title: "Type", Width: 12},
			{Title: "Risk", Width: 8},
			{Title: "Betweenness", Width: 12},
			{Title: "Reach", Width: 8},
			{Title: "Method", Width: 8},
		}, 12),
		scenarios: newTable([]table.Column{
			{Title: "Scenario", Width: 14},
			{Title: "Temp °C", Width: 8},
			{Title: "Load x", Width: 7},
			{Title: "Threshold", Width: 10},
			{Title: "Patient zero", Width: 16},
			{Title: "Description", Width: 40},
		}, 6),
		cascade: newTable([]table.Column{
			{Title: "Seq", Width: 5},
			{Title: "Wave", Width: 5},
			{Title: "Node", Width: 16},
			{Title: "Type", Width: 12},
			{Title: "P(fail)", Width: 8},
			{Title: "Caused by", Width: 16},
		}, 10),
		help: help.New(),
		keys: keys,
	}
}

func (m model) call(fn func(ctx context.Context) (tea.Msg, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.client.http.Timeout)
		defer cancel()
		msg, err := fn(ctx)
		if err != nil {
			return errMsg{err}
		}
		return msg
	}
}

func (m model) fetchRisk() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		a, err := m.client.realtimeRisk(ctx)
		return riskMsg{a}, err
	})
}

func (m model) fetchStatus() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		s, err := m.client.status(ctx)
		return statusMsg{s}, err
	})
}

func (m model) fetchCandidates() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		r, err := m.client.candidates(ctx, 20)
		return candidatesMsg{r}, err
	})
}

func (m model) fetchScenarios() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		s, err := m.client.scenarios(ctx)
		return scenariosMsg{s}, err
	})
}

func (m model) runSimulation(req validation.SimulateRequest) tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		r, err := m.client.simulate(ctx, req)
		return simulateMsg{r}, err
	})
}

func (m model) triggerRecompute() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		return recomputeMsg{}, m.client.recompute(ctx)
	})
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.fetchRisk(),
		m.fetchStatus(),
		m.fetchCandidates(),
		m.fetchScenarios(),
		m.tickCmd(),
	)
}

func (m model) scenarioName() string {
	catalog := cascade.Scenarios()
	return catalog[m.scenarioIdx%len(catalog)].Name
}

func (m *model) switchView(v view) {
	m.currentView = v
	if v == simulateView {
		m.patientZero.Focus()
	} else {
		m.patientZero.Blur()
	}
}

func (m *model) setInfo(format string, args ...any) {
	m.message = fmt.Sprintf(format, args...)
	m.messageErr = false
}

func (m *model) setError(err error) {
	m.message = err.Error()
	m.messageErr = true
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		return m, tea.Batch(m.fetchRisk(), m.fetchStatus(), m.tickCmd())

	case riskMsg:
		m.assessment = msg.assessment

	case statusMsg:
		m.status = msg.status

	case candidatesMsg:
		m.ranking = msg.ranking
		m.candidates.SetRows(candidateRows(msg.ranking))
		if len(msg.ranking.Candidates) > 0 && m.patientZero.Value() == "" {
			m.patientZero.SetValue(msg.ranking.Candidates[0].NodeID)
		}

	case scenariosMsg:
		m.scenarios.SetRows(scenarioRows(msg.scenarios))

	case simulateMsg:
		m.result = msg.result
		m.cascade.SetRows(cascadeRows(msg.result))
		m.setInfo("Simulation %s: %d nodes failed in %d waves",
			shortID(msg.result.SimulationID), msg.result.TotalAffectedNodes, msg.result.MaxCascadeDepth)

	case recomputeMsg:
		m.setInfo("Centrality recompute requested")
		cmds = append(cmds, m.fetchStatus())

	case errMsg:
		m.setError(msg.err)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.switchView((m.currentView + 1) % viewCount)
			return m, nil

		case key.Matches(msg, m.keys.ShiftTab):
			m.switchView((m.currentView + viewCount - 1) % viewCount)
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			m.message = ""
			return m, tea.Batch(m.fetchRisk(), m.fetchStatus(), m.fetchCandidates(), m.fetchScenarios())

		case key.Matches(msg, m.keys.Recompute):
			return m, m.triggerRecompute()

		case key.Matches(msg, m.keys.Scenario):
			m.scenarioIdx++
			return m, nil

		case key.Matches(msg, m.keys.Enter):
			switch m.currentView {
			case simulateView:
				return m, m.simulateFromInput()
			case candidatesView:
				// Simulate the highlighted candidate.
				if row := m.candidates.SelectedRow(); row != nil {
					m.patientZero.SetValue(row[1])
					m.switchView(simulateView)
					return m, m.simulateFromInput()
				}
			}
		}
	}

	switch m.currentView {
	case simulateView:
		m.patientZero, cmd = m.patientZero.Update(msg)
		cmds = append(cmds, cmd)
		m.cascade, cmd = m.cascade.Update(msg)
		cmds = append(cmds, cmd)
	case candidatesView:
		m.candidates, cmd = m.candidates.Update(msg)
		cmds = append(cmds, cmd)
	case scenariosView:
		m.scenarios, cmd = m.scenarios.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) simulateFromInput() tea.Cmd {
	req := validation.SimulateRequest{
		PatientZeroID: strings.TrimSpace(m.patientZero.Value()),
		ScenarioName:  m.scenarioName(),
	}
	if err := validation.ValidateSimulateRequest(&req); err != nil {
		m.setError(err)
		return nil
	}
	m.setInfo("Simulating %s under %s...", req.PatientZeroID, req.ScenarioName)
	return m.runSimulation(req)
}

func candidateRows(r *ranking.Ranking) []table.Row {
	rows := make([]table.Row, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", c.Rank),
			c.NodeID,
			string(c.Type),
			fmt.Sprintf("%.3f", c.CascadeRiskScore),
			fmt.Sprintf("%.4f", c.BetweennessCentrality),
			fmt.Sprintf("%d", c.TotalReach),
			string(c.Method),
		})
	}
	return rows
}

func scenarioRows(s *api.ScenariosResponse) []table.Row {
	rows := make([]table.Row, 0, len(s.Scenarios))
	for _, sc := range s.Scenarios {
		rows = append(rows, table.Row{
			sc.Name,
			fmt.Sprintf("%.0f", sc.TemperatureC),
			fmt.Sprintf("%.2f", sc.LoadMultiplier),
			fmt.Sprintf("%.2f", sc.FailureThreshold),
			sc.RecommendedPatientZero,
			sc.Description,
		})
	}
	return rows
}

func cascadeRows(r *cascade.Result) []table.Row {
	rows := make([]table.Row, 0, len(r.CascadeOrder))
	for _, n := range r.CascadeOrder {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", n.SequenceOrder),
			fmt.Sprintf("%d", n.WaveDepth),
			n.NodeID,
			string(n.Type),
			fmt.Sprintf("%.2f", n.FailureProbability),
			n.CausedBy,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("⚡ GridCascade - " + m.client.base))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		s.WriteString(m.renderDashboard())
	case candidatesView:
		s.WriteString(m.renderCandidates())
	case simulateView:
		s.WriteString(m.renderSimulate())
	case scenariosView:
		s.WriteString(m.renderScenarios())
	}

	if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(errorStyle.Render("✗ " + m.message))
		} else {
			s.WriteString(successStyle.Render("✓ " + m.message))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m model) renderTabs() string {
	rendered := make([]string, 0, len(tabNames))
	for i, tab := range tabNames {
		if view(i) == m.currentView {
			rendered = append(rendered, activeTabStyle.Render(tab))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m model) renderDashboard() string {
	riskContent := "Realtime risk\n━━━━━━━━━━━━━━━\nwaiting for server..."
	if a := m.assessment; a != nil {
		style, ok := levelStyles[a.Level]
		if !ok {
			style = lipgloss.NewStyle()
		}
		riskContent = fmt.Sprintf(`Realtime risk
━━━━━━━━━━━━━━━
Level:      %s
Score:      %.3f
Load:       %.2f
Peak:       %.2f
Stress:     %.2f
High risk:  %d nodes

%s`,
			style.Render(string(a.Level)),
			a.Score,
			a.LoadFactor,
			a.PeakFactor,
			a.EquipmentStress,
			a.HighRiskNodes,
			a.RecommendedAction,
		)
	}

	statusContent := "Centrality\n━━━━━━━━━━━━━━━\nno snapshot yet"
	if st := m.status; st != nil && st.Snapshot != nil {
		snap := st.Snapshot
		stale := ""
		if snap.Stale {
			stale = errorStyle.Render(" (stale)")
		}
		statusContent = fmt.Sprintf(`Centrality
━━━━━━━━━━━━━━━
Snapshot:   v%d%s
Topology:   v%d
Method:     %s
Nodes:      %d (%d exact)
Age:        %s`,
			snap.Version, stale,
			snap.TopologyVersion,
			snap.Method,
			snap.Nodes, snap.ExactNodes,
			(time.Duration(snap.AgeSeconds * float64(time.Second))).Round(time.Second).String(),
		)
		if sch := st.Scheduler; sch != nil {
			statusContent += fmt.Sprintf("\nRuns:       %d (%d failed)\nRunning:    %v", sch.Runs, sch.Failures, sch.Running)
			if sch.LastError != "" {
				statusContent += "\n" + errorStyle.Render(sch.LastError)
			}
		}
	}

	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(riskContent),
		boxStyle.Render(statusContent),
	))
}

func (m model) renderCandidates() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Patient zero candidates"))
	s.WriteString("\n\n")
	if m.ranking != nil && m.ranking.ProxyFallback {
		s.WriteString(errorStyle.Render("No centrality snapshot; ranked by degree proxy"))
		s.WriteString("\n\n")
	}
	s.WriteString(m.candidates.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("↑/↓ select • enter simulates the selected node"))
	return contentStyle.Render(s.String())
}

func (m model) renderSimulate() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Cascade simulation"))
	s.WriteString("\n\n")
	s.WriteString("Patient zero:\n")
	s.WriteString(m.patientZero.View())
	s.WriteString(fmt.Sprintf("\n\nScenario: %s  (ctrl+s to change)\n\n", m.scenarioName()))

	if r := m.result; r != nil {
		summary := fmt.Sprintf(`Affected:   %d nodes
Capacity:   %.2f MW
Customers:  %d
Depth:      %d waves`,
			r.TotalAffectedNodes,
			r.AffectedCapacityMW,
			r.EstimatedCustomersAffected,
			r.MaxCascadeDepth,
		)
		if r.Truncated {
			summary += "\n" + errorStyle.Render("Truncated: "+r.TruncationReason)
		}
		s.WriteString(boxStyle.Render(summary))
		s.WriteString("\n\n")
		s.WriteString(m.cascade.View())
	}
	return contentStyle.Render(s.String())
}

func (m model) renderScenarios() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Stress scenarios"))
	s.WriteString("\n\n")
	s.WriteString(m.scenarios.View())
	return contentStyle.Render(s.String())
}

func main() {
	addr := flag.String("addr", envOr("GRIDCASCADE_ADDR", "localhost:8080"), "Server address")
	token := flag.String("token", os.Getenv("GRIDCASCADE_TOKEN"), "Bearer token (see gridcascade-server -mint-token)")
	refresh := flag.Duration("refresh", 5*time.Second, "Dashboard refresh interval")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-request timeout")
	flag.Parse()

	c := newClient(*addr, *token, *timeout)
	p := tea.NewProgram(initialModel(c, *refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
