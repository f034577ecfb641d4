package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mathsnap/api/internal/problem"
	"mathsnap/api/internal/translate"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	answerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

// printRecord writes one record in the detail layout.
func printRecord(w io.Writer, rec problem.Record) {
	fmt.Fprintln(w, titleStyle.Render("Problem: ")+rec.ProblemText)
	fmt.Fprintln(w, headerStyle.Render("Solution: ")+answerStyle.Render(rec.SolutionText))
	if len(rec.Steps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Steps"))
		for i, s := range rec.Steps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	meta := []string{"id " + rec.ID, rec.CreatedAt().Local().Format("2006-01-02 15:04:05")}
	if rec.Translated() {
		meta = append(meta, "translated to "+translate.LanguageName(rec.Language))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, mutedStyle.Render(strings.Join(meta, " · ")))
}
