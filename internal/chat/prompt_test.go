// ABOUTME: Unit tests for prompt assembly and session naming
// ABOUTME: Covers history wrapping, truncation limits, and tool logs

package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Yoni-Raich/copilot-sdk-ui/internal/store"
)

func TestSessionNameFromContent(t *testing.T) {
	assert.Equal(t, "short", sessionNameFromContent("short"))

	long := strings.Repeat("x", 80)
	name := sessionNameFromContent(long)
	assert.Equal(t, strings.Repeat("x", 50)+"...", name)

	exact := strings.Repeat("y", 50)
	assert.Equal(t, exact, sessionNameFromContent(exact))
}

func TestBuildPrompt_NoHistory(t *testing.T) {
	assert.Equal(t, "hello", buildPrompt(nil, "hello"))
}

func TestBuildPrompt_WithHistory(t *testing.T) {
	history := []*store.Message{
		{Role: store.RoleUser, Content: "what is Go"},
		{Role: store.RoleAssistant, Content: "a programming language"},
	}

	prompt := buildPrompt(history, "show an example")
	assert.True(t, strings.HasPrefix(prompt, "Conversation history:\n\n"))
	assert.Contains(t, prompt, "Human: what is Go")
	assert.Contains(t, prompt, "Assistant: a programming language")
	assert.True(t, strings.HasSuffix(prompt, "Human: show an example\n\nRespond to my latest message."))
}

func TestBuildPrompt_TruncatesLongHistoryMessages(t *testing.T) {
	history := []*store.Message{
		{Role: store.RoleAssistant, Content: strings.Repeat("a", 3000)},
	}

	prompt := buildPrompt(history, "next")
	assert.Contains(t, prompt, "Assistant: "+strings.Repeat("a", 2000))
	assert.NotContains(t, prompt, strings.Repeat("a", 2001))
}

func TestToolLogs(t *testing.T) {
	start := toolStartLog("read_file", `{"path":"x"}`)
	assert.Contains(t, start, "**Tool Call:** `read_file`")
	assert.Contains(t, start, `{"path":"x"}`)

	complete := toolCompleteLog("read_file")
	assert.Contains(t, complete, "**Tool Result:** `read_file`")
}
