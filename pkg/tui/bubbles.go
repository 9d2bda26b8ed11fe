package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/savioxavier/termlink"

	"github.com/integrail/gsearch/pkg/extract"
	"github.com/integrail/gsearch/pkg/generation"
)

const maxMessages = 50

type (
	generationDoneMsg generation.State
	reportMsg         string
)

var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF88")).Background(lipgloss.Color("#444444"))

type Submitter interface {
	Submit(ctx context.Context, prompt string) generation.State
}

type CliClient struct {
	viewport             viewport.Model
	messages             []string
	textarea             textarea.Model
	senderStyle          lipgloss.Style
	responseStyle        lipgloss.Style
	sourceStyle          lipgloss.Style
	errorStyle           lipgloss.Style
	loader               spinner.Model
	ctx                  context.Context
	generator            Submitter
	reports              chan string
	state                generation.State
	model                string
	promptHistory        []string
	promptHistoryPointer int
}

// BubbleClient builds the interactive model. The returned client is also the generation.Reporter
// that retry notices should be sent to.
func BubbleClient(ctx context.Context, model string) *CliClient {
	ta := textarea.New()
	ta.Placeholder = "e.g., Explain goroutines in simple terms. (Enter to send, Up/Down for history, Ctrl^C to exit)"
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 4096

	ta.SetWidth(128)
	ta.SetHeight(4)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(128, 24)
	vp.SetContent("Welcome! Enter a prompt and press Enter to generate a grounded answer.")

	return &CliClient{
		ctx:           ctx,
		textarea:      ta,
		viewport:      vp,
		messages:      []string{},
		reports:       make(chan string, 16),
		model:         model,
		senderStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		responseStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		sourceStyle:   lipgloss.NewStyle().Bold(true),
		errorStyle:    lipgloss.NewStyle().Background(lipgloss.Color("#330000")).Foreground(lipgloss.Color("#FF3333")),
		loader: spinner.New(
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
			spinner.WithSpinner(spinner.Dot),
		),
	}
}

// Attach sets the component prompts are submitted to.
func (m *CliClient) Attach(generator Submitter) {
	m.generator = generator
}

// Report queues a progress line; it never blocks the generation.
func (m *CliClient) Report(msg string) {
	select {
	case m.reports <- msg:
	default:
	}
}

func (m *CliClient) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForReport())
}

func (m *CliClient) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	if !m.state.IsLoading() {
		m.textarea, tiCmd = m.textarea.Update(msg)
	}
	m.viewport, vpCmd = m.viewport.Update(msg)

	if m.ctx.Err() != nil {
		return m, tea.Quit
	}
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.state.IsLoading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = lo.Max([]int{msg.Height - m.textarea.Height() - 6, 5})
		m.textarea.SetWidth(msg.Width)
		m.updateMessages()
	case reportMsg:
		m.appendMessage(m.responseStyle.Render("Status: ") + string(msg))
		return m, m.waitForReport()
	case generationDoneMsg:
		m.processResponse(generation.State(msg))
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.promptHistoryPointer < len(m.promptHistory) {
				m.promptHistoryPointer++
				m.textarea.SetValue(m.promptHistory[len(m.promptHistory)-m.promptHistoryPointer])
			}
		case tea.KeyDown:
			if m.promptHistoryPointer > 1 {
				m.promptHistoryPointer--
				m.textarea.SetValue(m.promptHistory[len(m.promptHistory)-m.promptHistoryPointer])
			} else {
				m.promptHistoryPointer = 0
				m.textarea.SetValue("")
			}
		case tea.KeyEnter:
			prompt := m.textarea.Value()
			if m.state.IsLoading() || strings.TrimSpace(prompt) == "" {
				return m, tea.Batch(tiCmd, vpCmd)
			}
			m.promptHistory = append(m.promptHistory, prompt)
			m.promptHistoryPointer = 0
			m.state = generation.State{Status: generation.StatusLoading}
			m.appendMessage(m.senderStyle.Render("You: ") + prompt)
			m.textarea.Reset()
			return m, tea.Batch(m.loader.Tick, m.submit(prompt))
		}
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *CliClient) submit(prompt string) tea.Cmd {
	return func() tea.Msg {
		return generationDoneMsg(m.generator.Submit(m.ctx, prompt))
	}
}

func (m *CliClient) waitForReport() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.reports:
			return reportMsg(msg)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *CliClient) processResponse(state generation.State) {
	m.state = state
	switch state.Status {
	case generation.StatusFailed:
		m.appendMessage(m.errorStyle.Render(state.Error))
	case generation.StatusSucceeded:
		m.appendMessage(m.responseStyle.Render("AI: ") + RenderResponse(state, m.sourceStyle))
	}
}

// RenderResponse prints the generated text and turns its sources into terminal hyperlinks.
func RenderResponse(state generation.State, titleStyle lipgloss.Style) string {
	if len(state.Sources) == 0 {
		return state.Result
	}
	lines := lo.Map(state.Sources, func(s extract.Source, i int) string {
		return fmt.Sprintf("%d. ", i+1) + termlink.ColorLink(s.Title, s.URI, "italic green")
	})
	return state.Text + "\n\n" + titleStyle.Render("Sources:") + "\n" + strings.Join(lines, "\n")
}

func (m *CliClient) appendMessage(msg string) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[1:]
	}
	m.updateMessages()
}

func (m *CliClient) updateMessages() {
	if len(m.messages) == 0 {
		return
	}
	m.viewport.SetContent(strings.Join(m.messages, "\n\n"))
	m.viewport.GotoBottom()
}

func (m *CliClient) View() string {
	dialogView := m.textarea.View()
	if m.state.IsLoading() {
		dialogView = m.loader.View() + " Generating..."
	}
	header := headerStyle.Render("Model: " + m.model)
	return header + fmt.Sprintf(
		"\n\n%s\n\n%s",
		m.viewport.View(),
		dialogView,
	) + "\n\n"
}
