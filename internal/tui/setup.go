package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type SetupModel struct {
	urlInput textinput.Model
	dirInput textinput.Model
	focus    int
	error    string
	width    int
	height   int
}

func NewSetupModel(apiURL, watchDir string) SetupModel {
	urlInput := textinput.New()
	urlInput.Placeholder = "http://localhost:8000"
	urlInput.SetValue(apiURL)
	urlInput.Focus()
	urlInput.Width = 60

	dirInput := textinput.New()
	dirInput.Placeholder = "/path/to/resume/inbox (optional)"
	dirInput.SetValue(watchDir)
	dirInput.Width = 60

	return SetupModel{
		urlInput: urlInput,
		dirInput: dirInput,
		focus:    0,
	}
}

func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab", "down", "shift+tab", "up":
			m = m.toggleFocus()
			return m, nil

		case "enter":
			apiURL := strings.TrimSpace(m.urlInput.Value())
			dir := strings.TrimSpace(m.dirInput.Value())

			if apiURL == "" {
				m.error = "API URL is required"
				return m, nil
			}

			return m, func() tea.Msg {
				return SetupSubmitMsg{
					APIURL:   apiURL,
					WatchDir: dir,
				}
			}
		}

		if m.focus == 0 {
			m.urlInput, cmd = m.urlInput.Update(msg)
		} else {
			m.dirInput, cmd = m.dirInput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SetupErrorMsg:
		m.error = msg.Error

	default:
		if m.focus == 0 {
			m.urlInput, cmd = m.urlInput.Update(msg)
		} else {
			m.dirInput, cmd = m.dirInput.Update(msg)
		}
	}

	return m, cmd
}

func (m SetupModel) toggleFocus() SetupModel {
	if m.focus == 0 {
		m.focus = 1
		m.urlInput.Blur()
		m.dirInput.Focus()
	} else {
		m.focus = 0
		m.dirInput.Blur()
		m.urlInput.Focus()
	}
	return m
}

func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("rfind - Setup") + "\n\n")
	b.WriteString("rfind talks to a resume search API.\n\n")
	b.WriteString("1. Start the API server (it listens on " + activeStyle.Render("http://localhost:8000") + " by default)\n")
	b.WriteString("2. Enter its address below\n")
	b.WriteString("3. Optionally pick a folder whose new PDFs are uploaded automatically\n\n")

	urlLabel := "API URL:"
	if m.focus == 0 {
		urlLabel = activeStyle.Render("> " + urlLabel)
	} else {
		urlLabel = "  " + urlLabel
	}
	b.WriteString(urlLabel + "\n")
	b.WriteString(inputStyle.Render(m.urlInput.View()) + "\n\n")

	dirLabel := "Resume Inbox Directory:"
	if m.focus == 1 {
		dirLabel = activeStyle.Render("> " + dirLabel)
	} else {
		dirLabel = "  " + dirLabel
	}
	b.WriteString(dirLabel + "\n")
	b.WriteString(inputStyle.Render(m.dirInput.View()) + "\n")

	if m.error != "" {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.error) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("tab switch field  enter submit  esc cancel"))

	return b.String()
}
