package caption

import "strings"

const systemPrompt = "You write short, punchy Instagram Reels captions. " +
	"Reply with the caption text only: no preamble, no quotes, no markdown."

const maxDescriptionChars = 1500

// BuildPrompt asks for a caption grounded in the source video's metadata.
func BuildPrompt(title, description string) string {
	description = strings.TrimSpace(description)
	if len(description) > maxDescriptionChars {
		description = description[:maxDescriptionChars]
	}

	var b strings.Builder
	b.WriteString("Write an engaging Instagram Reels caption for this video.\n")
	b.WriteString("Keep it under 150 characters, add one or two fitting emojis and 3-5 relevant hashtags.\n\n")
	b.WriteString("Title: ")
	b.WriteString(strings.TrimSpace(title))
	if description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(description)
	}
	return b.String()
}

// cleanCaption strips whitespace and wrapping quotes models sometimes add.
func cleanCaption(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
