package main

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/go-go-golems/answerstream/pkg/conversation"
	"github.com/go-go-golems/answerstream/pkg/session"
)

var (
	stageStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	queryStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("111"))
)

// renderTurn prints one assistant turn: progress first, then the answer
// text. It reads a store snapshot; nothing here mutates state.
func renderTurn(w io.Writer, turn conversation.Turn) {
	if turn.Session != nil {
		renderSession(w, *turn.Session)
	}
	if turn.Text != "" {
		fmt.Fprintln(w, turn.Text)
	}
	if turn.Status == conversation.StatusFailed {
		fmt.Fprintln(w, errorStyle.Render("(failed)"))
	}
}

func renderSession(w io.Writer, st session.State) {
	if len(st.Stages) > 0 {
		labels := make([]string, 0, len(st.Stages))
		for _, stage := range st.Stages {
			style := stageStyle
			if stage == session.StageError {
				style = errorStyle
			}
			labels = append(labels, style.Render(string(stage)))
		}
		fmt.Fprintln(w, strings.Join(labels, " → "))
	}
	for _, q := range st.SubQueries {
		fmt.Fprintln(w, queryStyle.Render("  ? "+q))
	}
	for _, src := range st.WebSources {
		line := "  • " + src.Domain
		if src.Title != "" {
			line += " — " + src.Title
		}
		fmt.Fprintln(w, sourceStyle.Render(line))
	}
	for _, doc := range st.DocumentSources {
		fmt.Fprintln(w, sourceStyle.Render("  ◦ "+doc.Filename))
	}
	if st.Err != "" {
		fmt.Fprintln(w, errorStyle.Render("  ! "+st.Err))
	}
}
