package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/ports"
	"fleetops/internal/usecase/ticket"
	"fleetops/internal/usecase/worksession"
)

const maxShownTransitions = 6
const maxActionLines = 8

const consoleOrigin = "console"

type Options struct {
	Actor           ports.User
	StatusFilter    string
	RefreshInterval time.Duration
}

type boardModel struct {
	ctx             context.Context
	tickets         *ticket.Service
	sessions        *worksession.Service
	actor           ports.User
	statusFilter    string
	refreshInterval time.Duration

	items         []ports.Ticket
	selectedIndex int
	transitions   []ports.TicketTransition
	session       ports.WorkSession
	hasSession    bool
	status        string
	actionLog     []string
}

type ticketsLoadedMsg struct {
	items []ports.Ticket
	err   error
}

type detailLoadedMsg struct {
	ticketID    uint64
	transitions []ports.TicketTransition
	session     ports.WorkSession
	hasSession  bool
	err         error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action   string
	ticketID uint64
	result   string
	err      error
}

func NewModel(ctx context.Context, tickets *ticket.Service, sessions *worksession.Service, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &boardModel{
		ctx:             ctx,
		tickets:         tickets,
		sessions:        sessions,
		actor:           options.Actor,
		statusFilter:    strings.TrimSpace(options.StatusFilter),
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadTicketsCmd(), m.tickCmd())
}

func (m *boardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadTicketsCmd(), m.tickCmd())
	case ticketsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.items = msg.items
		if len(m.items) == 0 {
			m.selectedIndex = 0
			m.transitions = nil
			m.hasSession = false
			m.status = "board is empty"
			return m, nil
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		if m.selectedIndex >= len(m.items) {
			m.selectedIndex = len(m.items) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d tickets", len(m.items))
		return m, m.loadDetailCmd()
	case detailLoadedMsg:
		if !m.isSelected(msg.ticketID) {
			return m, nil
		}
		if msg.err != nil {
			m.transitions = nil
			m.hasSession = false
			m.status = "detail load failed: " + msg.err.Error()
			return m, nil
		}
		m.transitions = msg.transitions
		m.session = msg.session
		m.hasSession = msg.hasSession
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendActionLog(msg.action, msg.ticketID, "failed: "+msg.err.Error())
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendActionLog(msg.action, msg.ticketID, msg.result)
		}
		return m, m.loadTicketsCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadTicketsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.items)-1 {
				m.selectedIndex++
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "s":
			return m, m.ticketActionCmd("start", m.tickets.Start)
		case "u":
			return m, m.ticketActionCmd("submit-qc", m.tickets.ToWaitingQC)
		case "p":
			return m, m.pauseCmd()
		case "r":
			return m, m.resumeCmd()
		case "x":
			return m, m.stopCmd()
		}
	}
	return m, nil
}

func (m *boardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Repair Board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"actor=%s status=%s refresh=%s",
		m.actor.Username,
		firstNonEmpty(m.statusFilter, "active"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Tickets"))
	builder.WriteString("\n")
	if len(m.items) == 0 {
		builder.WriteString(dimStyle.Render("- no tickets"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.items {
			technician := "-"
			if item.TechnicianID != nil {
				technician = fmt.Sprintf("%d", *item.TechnicianID)
			}
			line := fmt.Sprintf("#%d [%s] flag=%s srt=%dm technician=%s",
				item.TicketID, item.Status, item.FlagColor, item.SRTTotalMinutes, technician)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if selected, ok := m.selectedTicket(); ok {
		builder.WriteString(fmt.Sprintf("Ticket: #%d item=%d\n", selected.TicketID, selected.InventoryItemID))
		builder.WriteString(fmt.Sprintf("Status: %s\n", selected.Status))
		if m.hasSession {
			builder.WriteString(fmt.Sprintf("Timer: %s active=%ds\n", m.session.Status, m.session.ActiveSeconds))
		} else {
			builder.WriteString("Timer: none\n")
		}
		builder.WriteString("\nRecent Transitions:\n")
		if len(m.transitions) == 0 {
			builder.WriteString("- none\n")
		} else {
			start := len(m.transitions) - maxShownTransitions
			if start < 0 {
				start = 0
			}
			for _, tr := range m.transitions[start:] {
				builder.WriteString(fmt.Sprintf("- %s %s -> %s (%s)\n",
					tr.CreatedAt.Format("15:04:05"), tr.FromStatus, tr.ToStatus, tr.Action))
			}
		}
		builder.WriteString("\n")
	} else {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Action Log"))
	builder.WriteString("\n")
	if len(m.actionLog) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.actionLog {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  g refresh  s start  u submit-qc  p pause  r resume  x stop  q quit"))
	return builder.String()
}

func (m *boardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *boardModel) loadTicketsCmd() tea.Cmd {
	filter := ports.TicketFilter{ActiveOnly: true}
	if m.statusFilter != "" {
		filter.ActiveOnly = false
		filter.Statuses = []workflow.TicketStatus{workflow.TicketStatus(m.statusFilter)}
	}
	if m.actor.UserID != 0 && workflow.HasRole(m.actor.Roles, workflow.RoleTechnician) && !workflow.HasRole(m.actor.Roles, workflow.RoleMaster) {
		filter.TechnicianID = m.actor.UserID
	}
	return func() tea.Msg {
		items, err := m.tickets.List(m.ctx, filter)
		if err != nil {
			return ticketsLoadedMsg{err: err}
		}
		return ticketsLoadedMsg{items: items}
	}
}

func (m *boardModel) loadDetailCmd() tea.Cmd {
	selected, ok := m.selectedTicket()
	if !ok {
		return nil
	}
	ticketID := selected.TicketID
	return func() tea.Msg {
		transitions, err := m.tickets.Transitions(m.ctx, ticketID)
		if err != nil {
			return detailLoadedMsg{ticketID: ticketID, err: err}
		}
		session, err := m.sessions.OpenByTicket(m.ctx, ticketID)
		if err != nil {
			if workflow.IsNotFound(err) {
				return detailLoadedMsg{ticketID: ticketID, transitions: transitions}
			}
			return detailLoadedMsg{ticketID: ticketID, err: err}
		}
		return detailLoadedMsg{
			ticketID:    ticketID,
			transitions: transitions,
			session:     session,
			hasSession:  true,
		}
	}
}

func (m *boardModel) ticketActionCmd(action string, apply func(ctx context.Context, input ticket.ActionInput) (ports.Ticket, error)) tea.Cmd {
	selected, ok := m.selectedTicket()
	if !ok {
		m.status = "no ticket selected"
		return nil
	}
	ticketID := selected.TicketID
	m.status = "running " + action
	return func() tea.Msg {
		updated, err := apply(m.ctx, ticket.ActionInput{
			TicketID: ticketID,
			ActorID:  m.actor.UserID,
			Origin:   consoleOrigin,
		})
		if err != nil {
			return actionDoneMsg{action: action, ticketID: ticketID, err: err}
		}
		return actionDoneMsg{action: action, ticketID: ticketID, result: string(updated.Status)}
	}
}

func (m *boardModel) pauseCmd() tea.Cmd {
	selected, ok := m.selectedTicket()
	if !ok {
		m.status = "no ticket selected"
		return nil
	}
	ticketID := selected.TicketID
	m.status = "pausing"
	return func() tea.Msg {
		result, err := m.sessions.Pause(m.ctx, worksession.TimerInput{
			TicketID: ticketID,
			ActorID:  m.actor.UserID,
			Origin:   consoleOrigin,
		})
		if err != nil {
			return actionDoneMsg{action: "pause", ticketID: ticketID, err: err}
		}
		return actionDoneMsg{
			action:   "pause",
			ticketID: ticketID,
			result:   fmt.Sprintf("budget %ds/%ds", result.BudgetUsedSeconds, result.BudgetTotalSeconds),
		}
	}
}

func (m *boardModel) resumeCmd() tea.Cmd {
	selected, ok := m.selectedTicket()
	if !ok {
		m.status = "no ticket selected"
		return nil
	}
	ticketID := selected.TicketID
	m.status = "resuming"
	return func() tea.Msg {
		result, err := m.sessions.Resume(m.ctx, worksession.TimerInput{
			TicketID: ticketID,
			ActorID:  m.actor.UserID,
			Origin:   consoleOrigin,
		})
		if err != nil {
			return actionDoneMsg{action: "resume", ticketID: ticketID, err: err}
		}
		note := "running"
		if result.AutoResumed {
			note = "running (budget exhausted)"
		}
		return actionDoneMsg{action: "resume", ticketID: ticketID, result: note}
	}
}

func (m *boardModel) stopCmd() tea.Cmd {
	selected, ok := m.selectedTicket()
	if !ok {
		m.status = "no ticket selected"
		return nil
	}
	ticketID := selected.TicketID
	m.status = "stopping"
	return func() tea.Msg {
		session, err := m.sessions.Stop(m.ctx, worksession.TimerInput{
			TicketID: ticketID,
			ActorID:  m.actor.UserID,
			Origin:   consoleOrigin,
		})
		if err != nil {
			return actionDoneMsg{action: "stop", ticketID: ticketID, err: err}
		}
		return actionDoneMsg{action: "stop", ticketID: ticketID, result: fmt.Sprintf("active %ds", session.ActiveSeconds)}
	}
}

func (m *boardModel) selectedTicket() (ports.Ticket, bool) {
	if len(m.items) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return ports.Ticket{}, false
	}
	return m.items[m.selectedIndex], true
}

func (m *boardModel) isSelected(ticketID uint64) bool {
	selected, ok := m.selectedTicket()
	return ok && selected.TicketID == ticketID
}

func (m *boardModel) appendActionLog(action string, ticketID uint64, result string) {
	line := fmt.Sprintf("%s %s #%d %s", time.Now().Format("15:04:05"), action, ticketID, result)
	m.actionLog = append(m.actionLog, line)
	if len(m.actionLog) > maxActionLines {
		m.actionLog = m.actionLog[len(m.actionLog)-maxActionLines:]
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
