package models

import (
	"fmt"
	"regexp"
	"strings"
)

// FigureDescriptionMarker identifies snippets that describe a figure rather than prose
const FigureDescriptionMarker = "**Figure Description (Generated by Moondream):**"

var (
	figureTitleRe       = regexp.MustCompile(`(?m)^###\s*(.*)`)
	figureDescriptionRe = regexp.MustCompile(`\*\*Figure Description \(Generated by Moondream\):\*\*\s*([\s\S]*?)\s*---`)
	figureOriginalRefRe = regexp.MustCompile("\\*\\*Original Image Reference.*?\\*\\*\\s*`([^`]+)`")
)

// FigureDescription is a generated description of a figure found in a context snippet
type FigureDescription struct {
	SnippetID   string
	Title       string
	Description string
	OriginalRef string
	SourceFile  string
}

// ExtractFigureDescriptions collects figure descriptions from snippets, in order
func ExtractFigureDescriptions(snippets []ContextSnippet) []FigureDescription {
	var out []FigureDescription
	for _, s := range snippets {
		if !strings.Contains(s.SourceText, FigureDescriptionMarker) {
			continue
		}
		fd := FigureDescription{
			SnippetID:  s.ID,
			Title:      fmt.Sprintf("Image Description %d", len(out)+1),
			SourceFile: s.Metadata.SourceFile,
		}
		if m := figureTitleRe.FindStringSubmatch(s.SourceText); m != nil {
			if t := strings.TrimSpace(m[1]); t != "" {
				fd.Title = t
			}
		}
		if m := figureDescriptionRe.FindStringSubmatch(s.SourceText); m != nil {
			fd.Description = strings.TrimSpace(m[1])
		}
		if m := figureOriginalRefRe.FindStringSubmatch(s.SourceText); m != nil {
			fd.OriginalRef = m[1]
		}
		out = append(out, fd)
	}
	return out
}
