// ABOUTME: Prompt assembly from conversation history and session naming
// ABOUTME: Formats the bracketed tool log entries persisted inline

package chat

import (
	"fmt"
	"strings"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
)

const (
	sessionNameLimit    = 50
	historyMessageLimit = 2000
)

// sessionNameFromContent derives a display name from the first message,
// truncated with an ellipsis marker.
func sessionNameFromContent(content string) string {
	runes := []rune(content)
	if len(runes) <= sessionNameLimit {
		return content
	}
	return string(runes[:sessionNameLimit]) + "..."
}

// buildPrompt wraps the new message with prior conversation history. Each
// history message is capped so long transcripts stay within prompt limits.
func buildPrompt(history []*store.Message, content string) string {
	if len(history) == 0 {
		return content
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		speaker := "Assistant"
		if msg.Role == store.RoleUser {
			speaker = "Human"
		}
		body := msg.Content
		if runes := []rune(body); len(runes) > historyMessageLimit {
			body = string(runes[:historyMessageLimit])
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, body))
	}

	historyText := strings.Join(lines, "\n\n")
	return fmt.Sprintf("Conversation history:\n\n%s\n\nHuman: %s\n\nRespond to my latest message.", historyText, content)
}

// toolStartLog is the transcript entry persisted when a tool call begins.
// Blockquote formatting matches what the UI renders as a tool container.
func toolStartLog(tool, arguments string) string {
	return fmt.Sprintf("\n\n> 🔧 **Tool Call:** `%s`\n> \n> Arguments:\n> ```json\n> %s\n> ```\n\n", tool, arguments)
}

// toolCompleteLog is the transcript entry persisted when a tool call ends.
func toolCompleteLog(tool string) string {
	return fmt.Sprintf("\n\n> ✅ **Tool Result:** `%s`\n\n", tool)
}
