package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/mlenarte/interview-core/core"
	"github.com/mlenarte/interview-core/core/audio"
	"github.com/mlenarte/interview-core/core/connection"
	"github.com/mlenarte/interview-core/core/events"
	"github.com/mlenarte/interview-core/core/realtime"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("63")).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	interviewerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	participantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	partialStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	coachStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var qualityColors = map[connection.Quality]lipgloss.Color{
	connection.QualityDisconnected: lipgloss.Color("203"),
	connection.QualityPoor:         lipgloss.Color("208"),
	connection.QualityFair:         lipgloss.Color("220"),
	connection.QualityGood:         lipgloss.Color("114"),
	connection.QualityExcellent:    lipgloss.Color("84"),
}

type sessionStartedMsg struct{ err error }
type sessionEventMsg struct{ event events.Event }
type eventStreamClosedMsg struct{}
type tickMsg time.Time

type model struct {
	manager *session.Manager
	config  session.Config
	prober  *connection.Prober

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool

	lines      []string
	partial    string
	suggestion string
	coachNote  string

	state   session.State
	quality connection.Quality
	levels  audio.Levels
	elapsed time.Duration

	proberCancel context.CancelFunc
	width        int
	height       int
	quitting     bool
}

func newModel(manager *session.Manager, config session.Config, prober *connection.Prober) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return model{
		manager: manager,
		config:  config,
		prober:  prober,
		spinner: s,
		state:   manager.State(),
		quality: manager.ConnectionQuality(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startSession(), tick())
}

func (m model) startSession() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := m.manager.Configure(ctx, m.config); err != nil {
			return sessionStartedMsg{err: err}
		}
		if err := m.manager.Start(ctx); err != nil {
			return sessionStartedMsg{err: err}
		}
		return sessionStartedMsg{}
	}
}

func (m model) waitForEvent() tea.Cmd {
	stream := m.manager.Events()
	return func() tea.Msg {
		event, ok := <-stream
		if !ok {
			return eventStreamClosedMsg{}
		}
		return sessionEventMsg{event: event}
	}
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 3
		footerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.proberCancel != nil {
				m.proberCancel()
			}
			_ = m.manager.End(context.Background())
			return m, tea.Quit
		case " ":
			ctx := context.Background()
			if m.manager.State() == session.StateRunning {
				_ = m.manager.Pause(ctx)
			} else {
				_ = m.manager.Resume(ctx)
			}
			return m, nil
		case "r":
			_ = m.manager.AttemptRecovery(context.Background())
			return m, nil
		}

	case sessionStartedMsg:
		if msg.err != nil {
			m.suggestion = msg.err.Error()
			m.state = m.manager.State()
			return m, nil
		}
		proberCtx, cancel := context.WithCancel(context.Background())
		m.proberCancel = cancel
		go m.prober.Run(proberCtx)
		m.state = m.manager.State()
		return m, m.waitForEvent()

	case sessionEventMsg:
		m.applyEvent(msg.event)
		m.refreshTranscript()
		return m, m.waitForEvent()

	case eventStreamClosedMsg:
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.state = m.manager.State()
		m.quality = m.manager.ConnectionQuality()
		m.levels = m.manager.AudioLevels()
		m.elapsed = m.manager.Elapsed()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) applyEvent(event events.Event) {
	switch event := event.(type) {
	case events.TranscriptSegmentFinalized:
		style := participantStyle
		label := "Participant"
		if event.Segment.Speaker == realtime.SpeakerInterviewer {
			style = interviewerStyle
			label = "Interviewer"
		}
		m.lines = append(m.lines, fmt.Sprintf("%s %s", style.Render(label+":"), event.Segment.Text))
		m.partial = ""
	case events.TranscriptPartialUpdated:
		m.partial = event.Text
	case events.SessionStateChanged:
		m.state = session.State(event.To)
	case events.SessionErrorOccurred:
		m.suggestion = event.Suggestion
	case events.SessionDegraded:
		m.suggestion = "Degraded mode: " + event.Mode
	case events.ConnectionQualityChanged:
		m.quality = event.To
	case events.CoachingFunctionCall:
		m.coachNote = describeCoachingCall(event.Call)
	}
}

func describeCoachingCall(call realtime.FunctionCall) string {
	switch call.Name {
	case "suggest_follow_up":
		args := realtime.SuggestFollowUpArgs{}
		if err := call.DecodeArguments(&args); err == nil {
			return "Follow up: " + args.Question
		}
	case "flag_leading_question":
		args := realtime.FlagLeadingQuestionArgs{}
		if err := call.DecodeArguments(&args); err == nil {
			if args.Suggestion != "" {
				return "Leading question, try instead: " + args.Suggestion
			}
			return "Leading question: \"" + args.Quote + "\""
		}
	case "highlight_quote":
		args := realtime.HighlightQuoteArgs{}
		if err := call.DecodeArguments(&args); err == nil {
			return "Highlight: \"" + args.Quote + "\""
		}
	}
	return "Coaching: " + call.Name
}

func (m *model) refreshTranscript() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(wordwrap.String(line, m.viewport.Width))
		b.WriteString("\n")
	}
	if m.partial != "" {
		b.WriteString(partialStyle.Render(wordwrap.String(m.partial+"…", m.viewport.Width)))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if m.quitting {
		return "Saving session…\n"
	}

	title := m.config.Title
	if title == "" {
		title = "Interview session"
	}
	header := titleStyle.Render(title)

	status := fmt.Sprintf("%s  %s  %s  %s",
		m.stateIndicator(),
		lipgloss.NewStyle().Foreground(qualityColors[m.quality]).Render("● "+m.quality.String()),
		formatElapsed(m.elapsed),
		levelMeter(m.levels),
	)

	footer := helpStyle.Render("space pause/resume · r recover · q end & quit")
	if m.suggestion != "" {
		footer = errorStyle.Render(m.suggestion) + "\n" + footer
	} else if m.coachNote != "" {
		footer = coachStyle.Render(m.coachNote) + "\n" + footer
	}

	body := "\n  " + m.spinner.View() + " connecting…\n"
	if m.ready {
		body = m.viewport.View()
	}

	return strings.Join([]string{header, statusStyle.Render(status), body, footer}, "\n")
}

func (m model) stateIndicator() string {
	switch m.state {
	case session.StateRunning:
		return "● recording"
	case session.StatePaused:
		return "⏸ paused"
	case session.StateError:
		return errorStyle.Render("! recovering")
	case session.StateFailed:
		return errorStyle.Render("✗ failed")
	case session.StateEnded:
		return "■ ended"
	default:
		return m.spinner.View() + " " + string(m.state)
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func levelMeter(levels audio.Levels) string {
	const width = 12
	filled := int(levels.RMS * width)
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
