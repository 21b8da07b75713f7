package publish

import (
	"fmt"
	"strings"

	"AutoNews/internal/domain"
)

// markdownEscaper backslash-escapes punctuation that CommonMark could read as markup.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `{`, `\{`, `}`, `\}`,
	`[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`, `#`, `\#`, `+`, `\+`,
	`-`, `\-`, `.`, `\.`, `!`, `\!`, `<`, `\<`, `>`, `\>`, `&`, `\&`,
	`~`, `\~`, `|`, `\|`, `=`, `\=`,
)

// FormatCaption renders the outbound post as markdown:
// bold title, lead, and the source name linked to the article.
func FormatCaption(c domain.Candidate) string {
	return fmt.Sprintf("**%s**\n\n%s\n\nSource: [%s](<%s>)",
		EscapeMarkdown(c.Title),
		escapeMarkdownLines(c.Lead),
		EscapeMarkdown(c.Source),
		c.Link,
	)
}

// FormatFailureAlert describes a failed delivery for the operator channel.
func FormatFailureAlert(title string, err error) string {
	return fmt.Sprintf("**❌ Publish failed**\n\n%s\n\n_%s_", EscapeMarkdown(err.Error()), EscapeMarkdown(title))
}

// FormatDeadLetterAlert reports a post that exhausted its delivery attempts.
func FormatDeadLetterAlert(post domain.QueuedPost) string {
	return fmt.Sprintf("**⛔ Moved to dead letter after %d attempts**\n\n%s\n\n_%s_",
		post.Attempts, EscapeMarkdown(post.LastError), EscapeMarkdown(post.Candidate.Title))
}

// EscapeMarkdown collapses whitespace and escapes markdown punctuation.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

// escapeMarkdownLines keeps the line structure of s: each non-empty line is
// escaped on its own and lines are joined with markdown hard breaks.
func escapeMarkdownLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = EscapeMarkdown(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\\\n")
}
