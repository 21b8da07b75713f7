package llm

import (
	"fmt"
	"strings"
)

const defaultSystemPrompt = "You are a professional automotive news editor."

// sameEventPrompt asks whether two news texts report one event. The answer
// must be a bare Yes or No so parseVerdict can read it.
func sameEventPrompt(a, b string) string {
	return fmt.Sprintf(`Decide whether these two texts describe the same event, even if the wording differs. Answer only "Yes" or "No", without explanation.

Text 1:
%s

Text 2:
%s`, a, b)
}

// parseVerdict treats any answer containing yes (or the Russian "да") as a match.
func parseVerdict(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return strings.Contains(a, "yes") || strings.Contains(a, "да")
}

func systemPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	return prompt
}
