package export

import (
	"fmt"
	"hash/fnv"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/Dicklesworthstone/stories_viewer/pkg/catalog"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
)

// Seen maps a username to the ids of that user's stories already viewed.
type Seen map[string]map[int]bool

// sanitizeMermaidID ensures an ID is valid for Mermaid diagrams.
// Mermaid node IDs must be alphanumeric with hyphens/underscores.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	result := sb.String()
	if result == "" {
		return "node"
	}
	return result
}

// sanitizeMermaidText prepares text for use in Mermaid node labels.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"#", "",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	result := replacer.Replace(text)

	result = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)

	result = strings.TrimSpace(result)

	// Truncate if too long (UTF-8 safe using runes)
	runes := []rune(result)
	if len(runes) > 40 {
		result = string(runes[:37]) + "..."
	}

	return result
}

// GenerateMarkdown renders a report of the catalog: summary, table of
// contents, the playback order as a Mermaid flow, and one section per user.
// seen may be nil when no view history is available.
func GenerateMarkdown(cat *catalog.Catalog, title string, generated time.Time, seen Seen) string {
	var sb strings.Builder

	users := cat.Usernames()

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", generated.Format(time.RFC1123)))

	// Summary Statistics
	sb.WriteString("## Summary\n\n")
	stats := ComputeStats(cat)
	sb.WriteString("| Metric | Value |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **Users** | %d |\n", stats.Users))
	sb.WriteString(fmt.Sprintf("| **Stories** | %d |\n", stats.Stories))
	sb.WriteString(fmt.Sprintf("| Mean per user | %.2f |\n", stats.MeanPerUser))
	sb.WriteString(fmt.Sprintf("| Max per user | %d |\n", stats.MaxPerUser))
	if seen != nil {
		sb.WriteString(fmt.Sprintf("| Seen | %d |\n", countSeen(cat, seen)))
	}
	sb.WriteString("\n")

	// Table of Contents
	sb.WriteString("## Table of Contents\n\n")
	for _, u := range users {
		stories, _ := cat.StoriesOf(u)
		sb.WriteString(fmt.Sprintf("- [%s @%s (%d)](#%s)\n", seenIcon(u, stories, seen), u, len(stories), createSlug(u)))
	}
	sb.WriteString("\n---\n\n")

	// Playback order: a session runs through users left to right.
	sb.WriteString("## Playback Order\n\n")
	sb.WriteString("```mermaid\ngraph LR\n")
	sb.WriteString("    classDef seen fill:#6272A4,stroke:#333,color:#fff\n")
	sb.WriteString("    classDef unseen fill:#50FA7B,stroke:#333,color:#000\n")
	sb.WriteString("\n")

	safeIDMap := make(map[string]string)
	usedSafe := make(map[string]bool)
	getSafeID := func(orig string) string {
		if safe, ok := safeIDMap[orig]; ok {
			return safe
		}
		base := sanitizeMermaidID(orig)
		safe := base
		if usedSafe[safe] {
			// Collision: derive stable hash-based suffix
			h := fnv.New32a()
			_, _ = h.Write([]byte(orig))
			safe = fmt.Sprintf("%s_%x", base, h.Sum32())
		}
		usedSafe[safe] = true
		safeIDMap[orig] = safe
		return safe
	}

	prev := ""
	for _, u := range users {
		stories, _ := cat.StoriesOf(u)
		safeID := getSafeID(u)
		sb.WriteString(fmt.Sprintf("    %s[\"@%s<br/>%d stories\"]\n", safeID, sanitizeMermaidText(u), len(stories)))
		class := "unseen"
		if allSeen(u, stories, seen) {
			class = "seen"
		}
		sb.WriteString(fmt.Sprintf("    class %s %s\n", safeID, class))
		if prev != "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", prev, safeID))
		}
		prev = safeID
	}
	sb.WriteString("```\n\n")
	sb.WriteString("---\n\n")

	// Individual Users
	for i, u := range users {
		stories, _ := cat.StoriesOf(u)
		sb.WriteString(fmt.Sprintf("## %s @%s\n\n", seenIcon(u, stories, seen), u))
		sb.WriteString(fmt.Sprintf("Position %d of %d, %d stories.\n\n", i+1, len(users), len(stories)))

		if seen != nil {
			sb.WriteString("| # | Story | Image | Seen |\n|---|-------|-------|------|\n")
		} else {
			sb.WriteString("| # | Story | Image |\n|---|-------|-------|\n")
		}
		for n, s := range stories {
			row := fmt.Sprintf("| %d | %s | `%s` |", n+1, s.Label(), escapeTableCell(s.Image))
			if seen != nil {
				mark := ""
				if seen[u][s.ID] {
					mark = "yes"
				}
				row += fmt.Sprintf(" %s |", mark)
			}
			sb.WriteString(row + "\n")
		}
		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}

// createSlug creates a URL-friendly slug from a username
func createSlug(id string) string {
	slug := strings.ToLower(id)
	reg := regexp.MustCompile(`[^a-z0-9]+`)
	slug = reg.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return slug
}

func escapeTableCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func seenIcon(user string, stories []model.StoryRecord, seen Seen) string {
	switch {
	case seen == nil:
		return "⚪"
	case allSeen(user, stories, seen):
		return "⚫"
	default:
		return "🟢"
	}
}

func allSeen(user string, stories []model.StoryRecord, seen Seen) bool {
	if seen == nil || len(stories) == 0 {
		return false
	}
	for _, s := range stories {
		if !seen[user][s.ID] {
			return false
		}
	}
	return true
}

func countSeen(cat *catalog.Catalog, seen Seen) int {
	n := 0
	for _, u := range cat.Usernames() {
		stories, _ := cat.StoriesOf(u)
		for _, s := range stories {
			if seen[u][s.ID] {
				n++
			}
		}
	}
	return n
}

// SaveMarkdownToFile writes the generated markdown to a file
func SaveMarkdownToFile(cat *catalog.Catalog, filename string, seen Seen) error {
	content := GenerateMarkdown(cat, "Stories Export", time.Now(), seen)
	return os.WriteFile(filename, []byte(content), 0644)
}
