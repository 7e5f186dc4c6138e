package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/indexify/pkg/api"
	"github.com/rubiojr/indexify/pkg/page"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Define styles using lipgloss
var (
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	queryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginTop(1)

	resultTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("33"))

	abstractStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("110")).
			Padding(0, 1)

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Underline(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	trendingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("202"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	softStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))
)

var titleCase = cases.Title(language.English)

func sectionHeader(name string) string {
	return sectionStyle.Render(titleCase.String(name))
}

// renderState draws the whole page: the query box, the dropdowns, the error
// slot and the results.
func renderState(st page.State) string {
	var b strings.Builder

	box := st.Query
	if box == "" {
		box = metaStyle.Render("type to search")
	}
	b.WriteString(queryBoxStyle.Render(promptStyle.Render("search ") + box))
	b.WriteString("\n")

	if st.Location != "" {
		b.WriteString(metaStyle.Render("location: " + st.Location))
		b.WriteString("\n")
	}

	if st.SuggestionPanel() {
		b.WriteString(renderSuggestions(st.Suggestions))
	} else if st.ShowHistory() {
		b.WriteString(renderHistory(st.History))
	}

	if st.Loading {
		b.WriteString(loadingStyle.Render("searching..."))
		b.WriteString("\n")
	}

	if st.Error.Show {
		if st.Error.Soft {
			b.WriteString(softStyle.Render(st.Error.Message))
		} else {
			b.WriteString(errorStyle.Render("✗ " + st.Error.Message))
		}
		b.WriteString("\n")
	}

	if len(st.Results) > 0 {
		b.WriteString(renderResults(st.Results))
	}

	return b.String()
}

func renderSuggestions(suggestions []api.Suggestion) string {
	var b strings.Builder
	b.WriteString(sectionHeader("suggestions"))
	b.WriteString("\n")
	for i, s := range suggestions {
		line := fmt.Sprintf("  %d. %s", i+1, s.Text)
		if s.Count > 0 {
			line += metaStyle.Render(fmt.Sprintf(" (%d)", s.Count))
		}
		if s.Trending {
			line += " " + trendingStyle.Render("▲ trending")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func renderHistory(history []string) string {
	var b strings.Builder
	b.WriteString(sectionHeader("recent searches"))
	b.WriteString("\n")
	for i, q := range history {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
	}
	return b.String()
}

func renderResults(results []api.SearchResult) string {
	var b strings.Builder
	b.WriteString(sectionHeader(fmt.Sprintf("results (%d)", len(results))))
	b.WriteString("\n")
	for i, r := range results {
		b.WriteString(resultTitleStyle.Render(fmt.Sprintf("%d. %s", i+1, r.Title)))
		b.WriteString("\n")
		if r.Abstract != "" {
			b.WriteString("   " + abstractStyle.Render(r.Abstract))
			b.WriteString("\n")
		}
		if len(r.Keywords) > 0 {
			tags := make([]string, len(r.Keywords))
			for j, k := range r.Keywords {
				tags[j] = keywordStyle.Render(k)
			}
			b.WriteString("   " + strings.Join(tags, " "))
			b.WriteString("\n")
		}
		if r.Content != "" {
			b.WriteString("   " + linkStyle.Render(r.Content))
			b.WriteString("\n")
		}
	}
	return b.String()
}
