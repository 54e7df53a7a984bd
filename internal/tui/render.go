package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/mgomes/resumefind/internal/conversation"
	"github.com/mgomes/resumefind/internal/models"
)

const (
	maxSkills      = 8
	minRenderWidth = 40
)

var exampleQueries = []string{
	"Find me candidates with React and Node.js experience",
	"Who has worked in fintech?",
	"Show me senior developers with Python skills",
	"Find candidates with machine learning experience",
}

// RenderTurn renders a single turn without selection highlighting.
func RenderTurn(t conversation.Turn, width int) string {
	r := renderer{width: width, selected: -1}
	r.turn(t)
	return r.b.String()
}

// renderer writes turns line by line and records the line each candidate
// card starts on so the viewport can scroll to a selection.
type renderer struct {
	b         strings.Builder
	width     int
	selected  int
	next      int
	lines     int
	cardLines []int
}

func renderLog(turns []conversation.Turn, width, selected int) (string, []int) {
	r := renderer{width: width, selected: selected}
	for i, t := range turns {
		if i > 0 {
			r.line("")
		}
		r.turn(t)
	}
	return r.b.String(), r.cardLines
}

func (r *renderer) line(s string) {
	r.b.WriteString(s)
	r.b.WriteString("\n")
	r.lines++
}

func (r *renderer) textWidth() int {
	w := r.width - 4
	if w < minRenderWidth {
		w = minRenderWidth
	}
	return w
}

func (r *renderer) turn(t conversation.Turn) {
	switch t := t.(type) {
	case conversation.UserTurn:
		r.line(userStyle.Render("You:") + " " + t.Text)

	case conversation.ErrorTurn:
		r.line(assistantStyle.Render("Assistant:") + " " + errorStyle.Render(t.Text))

	case conversation.ResultTurn:
		r.line(assistantStyle.Render("Assistant:"))
		if t.Notice != "" {
			for _, l := range wrapText(t.Notice, r.textWidth(), 6) {
				r.line("  " + noticeStyle.Render(l))
			}
		}
		if caption := t.Caption(); caption != "" {
			r.line("  " + dimStyle.Render(caption))
		}
		for _, c := range t.Candidates {
			r.candidate(c)
		}
	}
}

func (r *renderer) candidate(c models.Candidate) {
	idx := r.next
	r.next++
	r.cardLines = append(r.cardLines, r.lines)

	marker := "  "
	if idx == r.selected {
		marker = selectedStyle.Render("> ")
	}

	name := c.Name
	if name == "" {
		name = "Unnamed candidate"
	}
	r.line(marker + nameStyle.Render(name) + " " + scoreStyle.Render(fmt.Sprintf("%d%% match", c.MatchPercent())))

	indent := "    "
	for _, l := range wrapText(c.Explanation, r.textWidth()-len(indent), 3) {
		r.line(indent + snippetStyle.Render(l))
	}
	if c.ExperienceSummary != "" {
		r.line(indent + summaryStyle.Render(truncate(c.ExperienceSummary, r.textWidth()-len(indent))))
	}
	if len(c.Skills) > 0 {
		skills := c.Skills
		if len(skills) > maxSkills {
			skills = skills[:maxSkills]
		}
		tags := make([]string, len(skills))
		for i, s := range skills {
			tags[i] = skillStyle.Render(s)
		}
		r.line(indent + strings.Join(tags, " "))
	}
}

func welcome() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Welcome!") + "\n\n")
	b.WriteString("I can help you find candidates from the resume database.\n\n")
	b.WriteString(activeStyle.Render("Try asking:") + "\n")
	for _, q := range exampleQueries {
		b.WriteString(dimStyle.Render("  \""+q+"\"") + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Type /help for upload and source commands.") + "\n")
	return b.String()
}

// truncate flattens s to one line no wider than max display cells.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}

// wrapText breaks s into at most maxLines lines of width display cells,
// ending the last line with "..." when text is left over.
func wrapText(s string, width, maxLines int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := ""
	for len(words) > 0 && len(lines) < maxLines {
		word := words[0]
		switch {
		case line == "" && runewidth.StringWidth(word) > width:
			// No space to break on, cut the word.
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				_, n := utf8.DecodeRuneInString(word)
				head = word[:n]
			}
			lines = append(lines, head)
			words[0] = word[len(head):]
		case line == "":
			line = word
			words = words[1:]
		case runewidth.StringWidth(line)+1+runewidth.StringWidth(word) <= width:
			line += " " + word
			words = words[1:]
		default:
			lines = append(lines, line)
			line = ""
		}
	}
	if line != "" {
		lines = append(lines, line)
	}

	if len(words) > 0 {
		last := lines[len(lines)-1]
		lines[len(lines)-1] = runewidth.Truncate(last, width-3, "") + "..."
	}

	return lines
}
