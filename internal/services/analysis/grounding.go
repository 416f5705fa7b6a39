package analysis

import (
	"net/url"
	"strings"

	"github.com/bobmcallan/pulse/internal/models"
)

// PlaceholderSourceTitle labels a citation the search tool returned without a title.
const PlaceholderSourceTitle = "reference source"

// CollectSources turns grounding chunks into citations: empty URIs are
// dropped, duplicates keep their first occurrence and a missing title gets
// the placeholder.
func CollectSources(chunks ...[]models.GroundingChunk) []models.Source {
	seen := make(map[string]bool)
	var sources []models.Source
	for _, group := range chunks {
		for _, c := range group {
			uri := strings.TrimSpace(c.URI)
			if uri == "" || seen[uri] {
				continue
			}
			seen[uri] = true

			title := strings.TrimSpace(c.Title)
			if title == "" {
				title = PlaceholderSourceTitle
			}
			sources = append(sources, models.Source{Title: title, URI: uri})
		}
	}
	return sources
}

// sourcesHeadings maps the article language onto the sources section heading.
var sourcesHeadings = map[string]string{
	"korean":  "### 🔍 실시간 데이터 및 뉴스 출처",
	"english": "### 🔍 Live Data & News Sources",
}

// SourcesSection renders citations as a markdown list under a horizontal rule.
// Links are labelled with the title, or the host name when the title is the placeholder.
func SourcesSection(sources []models.Source, language string) string {
	if len(sources) == 0 {
		return ""
	}
	heading, ok := sourcesHeadings[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		heading = sourcesHeadings["english"]
	}

	var b strings.Builder
	b.WriteString("\n\n---\n")
	b.WriteString(heading)
	b.WriteString("\n")
	for _, s := range sources {
		b.WriteString("- [")
		b.WriteString(sourceLabel(s))
		b.WriteString("](")
		b.WriteString(s.URI)
		b.WriteString(")\n")
	}
	return b.String()
}

func sourceLabel(s models.Source) string {
	if s.Title != "" && s.Title != PlaceholderSourceTitle {
		return s.Title
	}
	if u, err := url.Parse(s.URI); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return PlaceholderSourceTitle
}
