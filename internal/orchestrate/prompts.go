package orchestrate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phobologic/codescribe/internal/model"
)

// depContext is one dependency's committed documentation, serialized for
// prompt inclusion. Dependencies contribute their summaries rather than
// their full source, which keeps prompt size bounded as the graph grows.
type depContext struct {
	Path    string
	Payload *model.DocPayload
}

const docPromptHeader = `SYSTEM: You are an expert programmer writing high-quality, comprehensive Python docstrings in reStructuredText (reST) format. Your output MUST be a single JSON object.
`

// buildDocPrompt assembles the generation prompt for one unit: project
// description, dependency summaries, the unit's full source, and explicit
// instructions enumerating the required symbol keys.
func buildDocPrompt(description string, unit *model.SourceUnit, deps []depContext) string {
	var b strings.Builder
	b.WriteString(docPromptHeader)

	b.WriteString("\nUSER:\nProject Description:\n\"\"\"\n")
	b.WriteString(description)
	b.WriteString("\n\"\"\"\n")

	b.WriteString("\n---\nCONTEXT FROM DEPENDENCIES:\nThis file depends on other modules. Here is their documentation for context:\n\n")
	if len(deps) == 0 {
		b.WriteString("No internal dependencies have been documented yet.\n")
	}
	for _, d := range deps {
		fmt.Fprintf(&b, "File: `%s`\n%s\n\n", d.Path, formatDepPayload(d.Payload))
	}

	fmt.Fprintf(&b, "---\n\nDOCUMENT THE FOLLOWING SOURCE FILE:\n\nFile Path: `%s`\n\n```python\n%s\n```\n",
		unit.Path, unit.Raw)

	b.WriteString("\nINSTRUCTIONS:\nProvide a single JSON object as your response.\n")
	b.WriteString("1. The JSON object MUST have a special key \"__module__\" whose value is a concise, single-paragraph docstring summarizing the purpose of the entire file.\n")
	b.WriteString("2. The object MUST contain one key per symbol listed below, whose value is that symbol's complete docstring:\n")
	for i := range unit.Symbols {
		fmt.Fprintf(&b, "   - %q\n", unit.Symbols[i].Name)
	}
	b.WriteString("3. Do NOT include the original code in your response. Only generate the JSON containing the docstrings.\n")

	return b.String()
}

// formatDepPayload renders a dependency's payload as an indented JSON
// object, or a placeholder when the dependency failed to generate.
func formatDepPayload(p *model.DocPayload) string {
	if p == nil {
		return "(no summary available: documentation for this dependency failed to generate)"
	}
	obj := make(map[string]string, len(p.Symbols)+1)
	if p.ModuleDoc != "" {
		obj["__module__"] = p.ModuleDoc
	}
	for k, v := range p.Symbols {
		if v != "" {
			obj[k] = v
		}
	}
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
