package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/tools"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

func resultMsg(id string, size int) anthropic.Message {
	return anthropic.Message{Role: "user", Content: []anthropic.ContentBlock{{
		Type:      anthropic.BlockToolResult,
		ToolUseID: id,
		Content:   strings.Repeat("x", size),
	}}}
}

func TestConversation_ElidesOldestResults(t *testing.T) {
	c := newConversation(2500)
	c.add(anthropic.UserText("find plumbers"))
	c.add(resultMsg("a", 1000))
	c.add(resultMsg("b", 1000))
	assert.Equal(t, strings.Repeat("x", 1000), c.messages()[1].Content[0].Content)

	c.add(resultMsg("c", 1000))
	msgs := c.messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, elidedResult, msgs[1].Content[0].Content)
	assert.Equal(t, "a", msgs[1].Content[0].ToolUseID)
	assert.Equal(t, strings.Repeat("x", 1000), msgs[2].Content[0].Content)
	assert.Equal(t, strings.Repeat("x", 1000), msgs[3].Content[0].Content)
	assert.LessOrEqual(t, c.size(), 2500)
	assert.Equal(t, "find plumbers", msgs[0].Content[0].Text)
}

func TestConversation_KeepsNewestMessage(t *testing.T) {
	c := newConversation(100)
	c.add(anthropic.UserText("q"))
	c.add(resultMsg("a", 500))
	assert.Equal(t, strings.Repeat("x", 500), c.messages()[1].Content[0].Content)
}

func TestToolResultBlock(t *testing.T) {
	b := toolResultBlock(tools.Result{CallID: "tu_1", Tool: tools.SearchGooglePlaces, Error: "quota"}, 0)
	assert.Equal(t, anthropic.BlockToolResult, b.Type)
	assert.Equal(t, "tu_1", b.ToolUseID)
	assert.True(t, b.IsError)
	assert.Contains(t, b.Content, `"error":"quota"`)

	long := toolResultBlock(tools.Result{CallID: "tu_2", Message: strings.Repeat("é", 100)}, 50)
	assert.False(t, long.IsError)
	assert.Contains(t, long.Content, "...[truncated ")
	assert.LessOrEqual(t, len(long.Content), 50+len("...[truncated 999 chars]"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...[truncated 3 chars]", truncate("abcdef", 3))
	assert.Equal(t, "a...[truncated 2 chars]", truncate("aé", 2), "cuts on a rune boundary")
}
