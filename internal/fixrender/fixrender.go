// Package fixrender formats SCM change metadata into DTS text, per a
// FixRule (spec §4.5).
package fixrender

import (
	"fmt"
	"strings"

	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
)

// Render formats one fix description according to rule. Single-component
// rules (exactly one of the scalar/description/files flags set, and no
// others) produce the bare component value; otherwise a multi-component
// block is assembled: a header line of the enabled scalar components,
// then "Description: ...", then "Files:\n<file>\n...", each optional.
// Output is always newline-terminated with trailing blank lines collapsed.
func Render(rule *model.FixRule, d plugin.FixDesc) string {
	scalars := scalarParts(rule, d)
	single := soleComponent(rule)

	var b strings.Builder
	switch {
	case single == "change" && rule.IncludeChange:
		b.WriteString(d.Change)
	case single == "user" && rule.IncludeFixedBy:
		b.WriteString(d.User)
	case single == "date" && rule.IncludeFixedDate:
		b.WriteString(d.Stamp.UTC().Format("2006/01/02 15:04:05"))
	case single == "desc" && rule.IncludeDescription:
		b.WriteString(d.Desc)
	case single == "files" && rule.IncludeFiles:
		b.WriteString(strings.Join(d.Files, "\n"))
	default:
		if len(scalars) > 0 {
			b.WriteString(strings.Join(scalars, ", "))
			b.WriteString("\n")
		}
		if rule.IncludeDescription {
			fmt.Fprintf(&b, "Description: %s\n", d.Desc)
		}
		if rule.IncludeFiles {
			b.WriteString("Files:\n")
			for _, f := range d.Files {
				b.WriteString(f)
				b.WriteString("\n")
			}
		}
	}
	return collapseTrailingBlank(b.String())
}

func scalarParts(rule *model.FixRule, d plugin.FixDesc) []string {
	var parts []string
	if rule.IncludeChange {
		parts = append(parts, "Change: "+d.Change)
	}
	if rule.IncludeFixedBy {
		parts = append(parts, "User: "+d.User)
	}
	if rule.IncludeFixedDate {
		parts = append(parts, "Date: "+d.Stamp.UTC().Format("2006/01/02 15:04:05"))
	}
	return parts
}

// soleComponent reports which single flag is set, if exactly one is, so
// Render can emit the bare value instead of a labeled block.
func soleComponent(rule *model.FixRule) string {
	flags := map[string]bool{
		"change": rule.IncludeChange,
		"user":   rule.IncludeFixedBy,
		"date":   rule.IncludeFixedDate,
		"desc":   rule.IncludeDescription,
		"files":  rule.IncludeFiles,
	}
	var name string
	n := 0
	for k, v := range flags {
		if v {
			n++
			name = k
		}
	}
	if n == 1 {
		return name
	}
	return ""
}

func collapseTrailingBlank(s string) string {
	s = strings.TrimRight(s, "\n")
	return s + "\n"
}

// Deleted formats the literal line emitted for a removed fix id (spec §4.5).
func Deleted(id string) string {
	return fmt.Sprintf("Deleted change %s\n", id)
}

// Append joins existing DTS field text with newly rendered blocks,
// separating old from new with exactly one newline if old already ends in
// one, or two otherwise (spec §4.5's "one or two newlines" edge case).
func Append(existing string, blocks ...string) string {
	var b strings.Builder
	if existing != "" {
		b.WriteString(existing)
		if strings.HasSuffix(existing, "\n") {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	}
	for _, block := range blocks {
		b.WriteString(block)
	}
	return b.String()
}

// Apply renders added and deleted fix ids against rule and combines them
// with the current DTS field value according to rule.Action.
func Apply(rule *model.FixRule, current string, added []plugin.FixDesc, deleted []string) string {
	var blocks []string
	for _, d := range added {
		blocks = append(blocks, Render(rule, d))
	}
	for _, id := range deleted {
		blocks = append(blocks, Deleted(id))
	}
	if len(blocks) == 0 {
		return current
	}
	if rule.Action == model.FixReplace {
		return strings.Join(blocks, "")
	}
	return Append(current, blocks...)
}
