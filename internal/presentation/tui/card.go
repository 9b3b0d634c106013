package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/mesa/pkg/domain"
)

// CardMarkdown renders an agent profile as a markdown document.
func CardMarkdown(p domain.Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", p.Description)
	}
	fmt.Fprintf(&sb, "Instance: `%s`\n\n", p.AgentID)

	for _, c := range p.Capabilities {
		fmt.Fprintf(&sb, "## `%s`\n\n", c.Method)
		if c.Description != "" {
			fmt.Fprintf(&sb, "%s\n\n", c.Description)
		}
		if len(c.Params) == 0 {
			continue
		}

		fields := make([]string, 0, len(c.Params))
		for f := range c.Params {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		sb.WriteString("| Param | Type |\n|---|---|\n")
		for _, f := range fields {
			fmt.Fprintf(&sb, "| `%s` | `%s` |\n", f, c.Params[f].Name())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
