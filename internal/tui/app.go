package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mgomes/resumefind/internal/conversation"
	"github.com/mgomes/resumefind/internal/models"
	"github.com/mgomes/resumefind/internal/session"
	"github.com/mgomes/resumefind/internal/source"
)

const chromeHeight = 7 // header, alert, bordered input and help

type alert struct {
	text    string
	isError bool
}

// ChatModel is the interactive conversation screen. All session state lives
// in the session; the model only keeps view state.
type ChatModel struct {
	ctx      context.Context
	session  *session.Session
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	alert    alert
	browsing bool
	selected int
	queued   []string
	width    int
	height   int
	apiURL   string
	opener   func(url string) error
}

func NewChatModel(ctx context.Context, sess *session.Session, apiURL string) ChatModel {
	input := textinput.New()
	input.Placeholder = "Describe the candidate you're looking for..."
	input.Prompt = "> "
	input.Width = 70
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(activeStyle))

	return ChatModel{
		ctx:      ctx,
		session:  sess,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		apiURL:   apiURL,
		opener:   openURL,
	}
}

func (m ChatModel) Init() tea.Cmd {
	sess, ctx := m.session, m.ctx
	return tea.Batch(textinput.Blink, m.spinner.Tick, func() tea.Msg {
		return StartedMsg{Outcome: sess.Start(ctx)}
	})
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = max(msg.Width-8, 20)
		m.refresh(true)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.session.Busy() != session.Idle {
			m.refresh(false)
		}
		return m, cmd

	case StartedMsg:
		m.applyOutcome(msg.Outcome)

	case OpDoneMsg:
		m.applyOutcome(msg.Outcome)
		if m.session.Busy() == session.Idle {
			cmds = append(cmds, m.input.Focus(), m.drainQueue())
		}

	case WatchedFilesMsg:
		m.queued = append(m.queued, msg.Paths...)
		cmds = append(cmds, m.drainQueue())

	case openedMsg:
		if msg.err != nil {
			m.alert = alert{text: "Could not open resume: " + msg.err.Error(), isError: true}
		} else {
			m.alert = alert{text: "Opened " + msg.url}
		}

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.session.AwaitingConfirmation() {
		if key == "y" || key == "Y" {
			op := m.session.ConfirmClear()
			if op == nil {
				m.alert = alert{text: "Wait for the current upload or clear to finish."}
				return m, nil
			}
			m.alert = alert{}
			return m, m.dispatch(op)
		}
		m.session.CancelClear()
		m.alert = alert{text: "Clear cancelled."}
		return m, nil
	}

	switch key {
	case "esc":
		if m.alert.text != "" {
			m.alert = alert{}
			return m, nil
		}
		if m.browsing {
			return m.stopBrowsing()
		}
		return m, nil

	case "tab":
		if m.browsing {
			return m.stopBrowsing()
		}
		return m.startBrowsing()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.browsing {
		return m.handleBrowseKey(key)
	}

	if key == "enter" {
		return m.submit()
	}

	if m.session.Busy() != session.Idle {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetPending(m.input.Value())
	return m, cmd
}

func (m ChatModel) handleBrowseKey(key string) (tea.Model, tea.Cmd) {
	total := len(allCandidates(m.session.Turns()))

	switch key {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		m.refresh(false)
		m.scrollToSelection()

	case "down", "j":
		if m.selected < total-1 {
			m.selected++
		}
		m.refresh(false)
		m.scrollToSelection()

	case "enter", "o":
		candidates := allCandidates(m.session.Turns())
		if m.selected < 0 || m.selected >= len(candidates) {
			return m, nil
		}
		url, err := m.session.ResumeURL(candidates[m.selected].ResumeLocator)
		if err != nil {
			m.alert = alert{text: err.Error(), isError: true}
			return m, nil
		}
		opener := m.opener
		return m, func() tea.Msg {
			return openedMsg{url: url, err: opener(url)}
		}

	case "q", "i":
		return m.stopBrowsing()
	}

	return m, nil
}

func (m ChatModel) startBrowsing() (tea.Model, tea.Cmd) {
	turns := m.session.Turns()
	if len(allCandidates(turns)) == 0 {
		m.alert = alert{text: "No candidates to browse yet."}
		return m, nil
	}
	m.browsing = true
	m.selected = latestResultStart(turns)
	m.input.Blur()
	m.refresh(false)
	m.scrollToSelection()
	return m, nil
}

func (m ChatModel) stopBrowsing() (tea.Model, tea.Cmd) {
	m.browsing = false
	m.refresh(true)
	if m.session.Busy() != session.Idle {
		return m, nil
	}
	return m, m.input.Focus()
}

func (m ChatModel) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()

	if cmd, ok := parseCommand(line); ok {
		m.input.Reset()
		m.session.SetPending("")
		return m.runCommand(cmd)
	}

	op := m.session.SubmitQuery(line)
	if op == nil {
		return m, nil
	}

	m.alert = alert{}
	m.input.Reset()
	m.input.Blur()
	m.refresh(true)
	return m, m.dispatch(op)
}

func (m ChatModel) runCommand(c command) (tea.Model, tea.Cmd) {
	switch c.name {
	case "upload":
		if len(c.args) == 0 {
			m.alert = alert{text: "Usage: /upload <files or globs>", isError: true}
			return m, nil
		}
		paths, err := ExpandPaths(c.args)
		if err != nil {
			m.alert = alert{text: "Upload failed: " + err.Error(), isError: true}
			return m, nil
		}
		return m.upload(paths)

	case "source":
		if len(c.args) != 1 {
			m.alert = alert{text: "Usage: /source local|uploaded", isError: true}
			return m, nil
		}
		target, err := models.ParseSource(c.args[0])
		if err != nil {
			m.alert = alert{text: err.Error(), isError: true}
			return m, nil
		}
		op := m.session.ChangeSource(target)
		if op == nil {
			m.alert = alert{text: "Wait for the current upload or source switch to finish."}
			return m, nil
		}
		return m, m.dispatch(op)

	case "clear":
		if !m.session.RequestClear() {
			m.alert = alert{text: "Wait for the current upload or clear to finish."}
			return m, nil
		}
		m.alert = alert{text: fmt.Sprintf("Clear all %d uploaded resumes? (y/n)", len(m.session.Status().UploadedFiles))}
		return m, nil

	case "status":
		m.alert = alert{text: statusLine(m.session.Status(), m.apiURL)}
		return m, nil

	case "help", "":
		m.alert = alert{text: helpText}
		return m, nil

	case "quit", "exit":
		return m, tea.Quit
	}

	m.alert = alert{text: fmt.Sprintf("Unknown command /%s. %s", c.name, helpText), isError: true}
	return m, nil
}

func (m ChatModel) upload(paths []string) (tea.Model, tea.Cmd) {
	docs, err := models.ReadDocuments(paths)
	if err != nil {
		m.alert = alert{text: "Upload failed: " + err.Error(), isError: true}
		return m, nil
	}
	op := m.session.UploadFiles(docs)
	if op == nil {
		m.alert = alert{text: "Wait for the current request to finish before uploading."}
		return m, nil
	}
	m.alert = alert{}
	m.input.Blur()
	m.refresh(true)
	return m, m.dispatch(op)
}

// drainQueue uploads resumes from the watched inbox once the session is idle.
func (m *ChatModel) drainQueue() tea.Cmd {
	if len(m.queued) == 0 || m.session.Busy() != session.Idle {
		return nil
	}
	paths := m.queued
	m.queued = nil

	docs, err := models.ReadDocuments(paths)
	if err != nil {
		m.alert = alert{text: "Upload failed: " + err.Error(), isError: true}
		return nil
	}
	op := m.session.UploadFiles(docs)
	if op == nil {
		m.queued = paths
		return nil
	}
	m.input.Blur()
	m.refresh(true)
	return m.dispatch(op)
}

func (m ChatModel) dispatch(op session.Op) tea.Cmd {
	if op == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return OpDoneMsg{Outcome: op(ctx)}
	}
}

func (m *ChatModel) applyOutcome(o session.Outcome) {
	if o.Alert != "" {
		m.alert = alert{text: o.Alert, isError: o.Err != nil}
	}
	m.refresh(!m.browsing)
}

// refresh re-renders the log into the viewport.
func (m *ChatModel) refresh(toBottom bool) {
	turns := m.session.Turns()
	if len(turns) == 0 && m.session.Busy() == session.Idle {
		m.viewport.SetContent(welcome())
		return
	}

	selected := -1
	if m.browsing {
		selected = m.selected
	}
	content, _ := renderLog(turns, m.viewport.Width, selected)

	switch m.session.Busy() {
	case session.Searching:
		content += "\n" + assistantStyle.Render("Assistant:") + " " + m.spinner.View() + dimStyle.Render(" searching...") + "\n"
	case session.Uploading:
		content += "\n" + m.spinner.View() + dimStyle.Render(" uploading resumes...") + "\n"
	}

	m.viewport.SetContent(content)
	if toBottom {
		m.viewport.GotoBottom()
	}
}

func (m *ChatModel) scrollToSelection() {
	_, cards := renderLog(m.session.Turns(), m.viewport.Width, m.selected)
	if m.selected < 0 || m.selected >= len(cards) {
		return
	}
	line := cards[m.selected]
	if line < m.viewport.YOffset || line >= m.viewport.YOffset+m.viewport.Height-4 {
		m.viewport.SetYOffset(max(line-1, 0))
	}
}

func (m ChatModel) View() string {
	var b strings.Builder

	status := m.session.Status()
	b.WriteString(titleStyle.Render("rfind") + " ")
	b.WriteString(dimStyle.Render(statusLine(status, m.apiURL)))
	if busy := m.session.Busy(); busy != session.Idle {
		b.WriteString(" " + activeStyle.Render(busy.String()))
	}
	b.WriteString("\n")

	b.WriteString(m.viewport.View() + "\n")

	switch {
	case m.alert.text == "":
		b.WriteString("\n")
	case m.alert.isError:
		b.WriteString(errorStyle.Render(m.alert.text) + "\n")
	default:
		b.WriteString(noticeStyle.Render(m.alert.text) + "\n")
	}

	b.WriteString(inputStyle.Render(m.input.View()) + "\n")

	if m.browsing {
		b.WriteString(helpStyle.Render("↑/↓ select  enter open resume  tab/esc back to chat  ctrl+c quit"))
	} else {
		b.WriteString(helpStyle.Render("enter search  tab browse candidates  /help commands  esc dismiss  ctrl+c quit"))
	}

	return b.String()
}

func statusLine(status source.Status, apiURL string) string {
	line := fmt.Sprintf("%s resumes · %d indexed", status.Active, status.IndexedCount)
	if n := len(status.UploadedFiles); n > 0 {
		line += fmt.Sprintf(" · %d uploaded (%s)", n, truncate(strings.Join(status.UploadedFiles, ", "), 40))
	}
	if apiURL != "" {
		line += " · " + apiURL
	}
	return line
}

func allCandidates(turns []conversation.Turn) []models.Candidate {
	var out []models.Candidate
	for _, t := range turns {
		if r, ok := t.(conversation.ResultTurn); ok {
			out = append(out, r.Candidates...)
		}
	}
	return out
}

// latestResultStart is the index of the first candidate of the most recent result set.
func latestResultStart(turns []conversation.Turn) int {
	start, count := 0, 0
	for _, t := range turns {
		if r, ok := t.(conversation.ResultTurn); ok && len(r.Candidates) > 0 {
			start = count
			count += len(r.Candidates)
		}
	}
	return start
}

func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
