package store

import (
	"fmt"
	"strings"
)

// renderMarkdown produces the human-readable document for a run.
func renderMarkdown(run *Run) string {
	var sb strings.Builder

	sb.WriteString("# HackerNews Summary\n\n")
	sb.WriteString("## Metadata\n\n")
	fmt.Fprintf(&sb, "- **Generated**: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- **Requested top N**: %d\n", run.RequestedTopN)
	fmt.Fprintf(&sb, "- **AI filter**: %t\n", run.FilterApplied)
	if run.FilterApplied {
		fmt.Fprintf(&sb, "- **Filtered out**: %d\n", run.FilteredOut)
	}
	fmt.Fprintf(&sb, "- **Articles**: %d\n\n", len(run.Articles))

	sb.WriteString("## Articles\n\n")

	for _, a := range run.Articles {
		fmt.Fprintf(&sb, "### %d. %s\n\n", a.Rank, a.Title)
		if a.URL != "" {
			fmt.Fprintf(&sb, "**URL:** [%s](%s)\n", a.URL, a.URL)
		}
		fmt.Fprintf(&sb, "**Points:** %d | **Author:** %s | **Comments:** %d\n",
			a.Points, a.Author, a.CommentCount)
		if a.DiscussionURL != "" {
			fmt.Fprintf(&sb, "**Discussion:** %s\n", a.DiscussionURL)
		}
		sb.WriteString("\n")

		if a.AIRelated != nil && *a.AIRelated {
			fmt.Fprintf(&sb, "**AI-Related** (confidence: %.2f)\n\n", a.AIConfidence)
		}

		sb.WriteString("#### Article Summary\n\n")
		sb.WriteString(a.Summary)
		sb.WriteString("\n\n")

		if a.CommentSummary != "" {
			sb.WriteString("#### Discussion Summary\n\n")
			sb.WriteString(a.CommentSummary)
			sb.WriteString("\n\n")
		}

		sb.WriteString("---\n\n")
	}

	return sb.String()
}
