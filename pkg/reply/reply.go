// Package reply formats character replies for chat surfaces that limit
// message length and render markdown.
package reply

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkLimit is the largest chunk Chunk produces, in characters.
	DefaultChunkLimit = 4000

	// NoResponseText replaces an empty reply.
	NoResponseText = "No response."
)

// Format stylizes text and splits it into chunks of at most limit
// characters.
func Format(text, narratorPrefix string, limit int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		clean = NoResponseText
	}
	return Chunk(Stylize(clean, narratorPrefix), limit)
}

// Stylize trims every line, drops blank lines, and italicizes lines that
// start with narratorPrefix (case-insensitive) unless already wrapped in
// asterisks. A trailing asterisk is added when the count is odd so markdown
// stays balanced. An empty narratorPrefix italicizes nothing.
func Stylize(text, narratorPrefix string) string {
	prefix := strings.ToLower(narratorPrefix)

	var styled []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if prefix != "" &&
			strings.HasPrefix(strings.ToLower(line), prefix) &&
			!(strings.HasPrefix(line, "*") && strings.HasSuffix(line, "*")) {
			line = "*" + line + "*"
		}
		styled = append(styled, line)
	}

	result := strings.Join(styled, "\n")
	if strings.Count(result, "*")%2 == 1 {
		result += "*"
	}
	return result
}

// Chunk splits text into pieces of at most limit characters, preferring to
// break at a blank line, then at a newline, then anywhere. Empty input
// yields a single NoResponseText chunk. limit <= 0 means DefaultChunkLimit.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	var chunks []string
	remaining := []rune(text)
	for len(remaining) > limit {
		window := string(remaining[:limit])

		split := strings.LastIndex(window, "\n\n")
		if split == -1 {
			split = strings.LastIndex(window, "\n")
		}

		var splitAt int
		if split == -1 {
			splitAt = limit
		} else {
			splitAt = len([]rune(window[:split]))
		}

		if chunk := strings.TrimSpace(string(remaining[:splitAt])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = []rune(strings.TrimLeftFunc(string(remaining[splitAt:]), unicode.IsSpace))
	}

	if len(remaining) > 0 {
		chunks = append(chunks, string(remaining))
	}
	if len(chunks) == 0 {
		chunks = append(chunks, NoResponseText)
	}
	return chunks
}
