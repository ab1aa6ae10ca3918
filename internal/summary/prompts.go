package summary

import (
	"fmt"
	"strings"

	"github.com/phobologic/codescribe/internal/model"
)

const subdirPromptHeader = `SYSTEM: You are an expert technical writer producing a concise Markdown overview of one directory in a software project. Respond with Markdown only, no code fences around the whole answer.
`

const rootPromptHeader = `SYSTEM: You are an expert technical writer producing the top-level Markdown overview for a software project. Respond with Markdown only, no code fences around the whole answer.
`

// buildPrompt assembles the summary prompt for one directory from its file
// summaries and its children's already-generated summaries. The root
// directory gets the project-level variant.
func (a *Aggregator) buildPrompt(dir string, s *model.DirectorySummary, produced map[string]*model.DirectorySummary) string {
	var b strings.Builder

	if dir == "." {
		b.WriteString(rootPromptHeader)
		name := a.cfg.ProjectName
		if name == "" {
			name = "this project"
		}
		fmt.Fprintf(&b, "\nUSER:\nWrite the overview for %s.\n", name)
	} else {
		b.WriteString(subdirPromptHeader)
		fmt.Fprintf(&b, "\nUSER:\nWrite the overview for the directory `%s`.\n", dir)
	}

	if a.cfg.Description != "" {
		b.WriteString("\nProject Description:\n\"\"\"\n")
		b.WriteString(a.cfg.Description)
		b.WriteString("\n\"\"\"\n")
	}

	b.WriteString("\nFILES IN THIS DIRECTORY:\n")
	if len(s.FileSummaries) == 0 {
		b.WriteString("(none)\n")
	}
	for _, line := range s.FileSummaries {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(s.ChildPaths) > 0 {
		b.WriteString("\nSUBDIRECTORIES:\n")
		for _, child := range s.ChildPaths {
			text := "(no summary available)"
			if cs := produced[child]; cs != nil && !cs.Failed {
				text = cs.Text
			}
			fmt.Fprintf(&b, "Directory `%s`:\n\"\"\"\n%s\n\"\"\"\n\n", child, text)
		}
	}

	if dir == "." {
		b.WriteString("\nINSTRUCTIONS:\nStart with a one-paragraph description of the whole project, then summarize how the pieces fit together. Mention notable subdirectories. Do not invent features that are not supported by the material above.\n")
	} else {
		b.WriteString("\nINSTRUCTIONS:\nWrite one or two short paragraphs describing what this directory contains and how its pieces relate. Do not invent features that are not supported by the material above.\n")
	}

	return b.String()
}
