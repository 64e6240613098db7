package agent

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/sells-group/lead-engine/internal/tools"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

const elidedResult = `{"elided":true,"message":"earlier tool result removed to bound conversation size; its leads were already recorded"}`

// conversation is the message history sent to the model. Once it grows
// beyond maxChars the oldest tool results are replaced by a marker.
type conversation struct {
	msgs     []anthropic.Message
	maxChars int
}

func newConversation(maxChars int) *conversation {
	if maxChars <= 0 {
		maxChars = DefaultMaxHistoryChars
	}
	return &conversation{maxChars: maxChars}
}

func (c *conversation) add(m anthropic.Message) {
	c.msgs = append(c.msgs, m)
	c.bound()
}

func (c *conversation) messages() []anthropic.Message {
	return c.msgs
}

// size approximates the history's weight in characters.
func (c *conversation) size() int {
	n := 0
	for _, m := range c.msgs {
		for _, b := range m.Content {
			n += len(b.Text) + len(b.Content) + len(b.Input)
		}
	}
	return n
}

func (c *conversation) bound() {
	over := c.size() - c.maxChars
	// The newest message stays intact so the model always sees the results
	// of its last turn.
	for i := 0; i < len(c.msgs)-1 && over > 0; i++ {
		m := c.msgs[i]
		var blocks []anthropic.ContentBlock
		for j, b := range m.Content {
			if over <= 0 || b.Type != anthropic.BlockToolResult || len(b.Content) <= len(elidedResult) {
				continue
			}
			if blocks == nil {
				blocks = append([]anthropic.ContentBlock{}, m.Content...)
			}
			over -= len(b.Content) - len(elidedResult)
			blocks[j].Content = elidedResult
		}
		if blocks != nil {
			c.msgs[i] = anthropic.Message{Role: m.Role, Content: blocks}
		}
	}
}

// toolResultBlock renders res as the model-facing tool_result, cut to
// maxChars.
func toolResultBlock(res tools.Result, maxChars int) anthropic.ContentBlock {
	payload, err := json.Marshal(res)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error":%q}`, "unencodable tool result: "+err.Error()))
	}
	return anthropic.ContentBlock{
		Type:      anthropic.BlockToolResult,
		ToolUseID: res.CallID,
		Content:   truncate(string(payload), maxChars),
		IsError:   res.Failed(),
	}
}

// truncate cuts s to at most maxChars bytes on a rune boundary and notes
// how much was dropped.
func truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("...[truncated %d chars]", len(s)-cut)
}
