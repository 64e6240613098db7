package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) Client {
	return NewClient("test-key", option.WithBaseURL(baseURL), option.WithMaxRetries(0))
}

func writeMessage(w http.ResponseWriter, stopReason string, content []map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"id":          "msg_test_001",
		"type":        "message",
		"role":        "assistant",
		"content":     content,
		"model":       "claude-sonnet-4-5-20250929",
		"stop_reason": stopReason,
		"usage": map[string]any{
			"input_tokens":                120,
			"output_tokens":               40,
			"cache_creation_input_tokens": 0,
			"cache_read_input_tokens":     10,
		},
	})
}

func TestCreateMessage_Text(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		writeMessage(w, "end_turn", []map[string]any{
			{"type": "text", "text": "Found three plumbers."},
		})
	}))
	defer ts.Close()

	resp, err := newTestClient(ts.URL).CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{UserText("find plumbers")},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "Found three plumbers.", resp.Text())
	assert.Empty(t, resp.ToolUses())
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(40), resp.Usage.OutputTokens)
	assert.Equal(t, int64(10), resp.Usage.CacheReadInputTokens)
}

func TestCreateMessage_ToolUseResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, "tool_use", []map[string]any{
			{"type": "text", "text": "Searching Places first."},
			{
				"type":  "tool_use",
				"id":    "toolu_01",
				"name":  "search_google_places",
				"input": map[string]any{"query": "plumbers in Santa Fe"},
			},
		})
	}))
	defer ts.Close()

	resp, err := newTestClient(ts.URL).CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{UserText("find plumbers")},
	})
	require.NoError(t, err)
	assert.Equal(t, StopToolUse, resp.StopReason)
	assert.Equal(t, "Searching Places first.", resp.Text())

	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "toolu_01", uses[0].ID)
	assert.Equal(t, "search_google_places", uses[0].Name)
	assert.JSONEq(t, `{"query":"plumbers in Santa Fe"}`, string(uses[0].Input))
}

func TestCreateMessage_SendsToolsAndResults(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		writeMessage(w, "end_turn", []map[string]any{{"type": "text", "text": "done"}})
	}))
	defer ts.Close()

	temp := 0.0
	_, err := newTestClient(ts.URL).CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 512,
		System: []SystemBlock{{
			Text:         "You find sales leads.",
			CacheControl: &CacheControl{TTL: "5m"},
		}},
		Temperature: &temp,
		Tools: []ToolDefinition{{
			Name:        "search_google_places",
			Description: "Search Google Places.",
			Properties: map[string]any{
				"query": map[string]any{"type": "string"},
			},
			Required: []string{"query"},
		}},
		Messages: []Message{
			UserText("find plumbers"),
			{Role: "assistant", Content: []ContentBlock{{
				Type:  BlockToolUse,
				ID:    "toolu_01",
				Name:  "search_google_places",
				Input: json.RawMessage(`{"query":"plumbers"}`),
			}}},
			{Role: "user", Content: []ContentBlock{{
				Type:      BlockToolResult,
				ToolUseID: "toolu_01",
				Content:   `{"leads":[]}`,
				IsError:   true,
			}}},
		},
	})
	require.NoError(t, err)

	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "search_google_places", tool["name"])
	schema := tool["input_schema"].(map[string]any)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"query"}, schema["required"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	use := assistant["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_use", use["type"])
	assert.Equal(t, "toolu_01", use["id"])

	result := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "toolu_01", result["tool_use_id"])
	assert.Equal(t, true, result["is_error"])

	system := body["system"].([]any)[0].(map[string]any)
	assert.Equal(t, "You find sales leads.", system["text"])
	assert.NotNil(t, system["cache_control"])
}

func TestCreateMessage_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 10,
		Messages:  []Message{UserText("hi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestMessageResponse_TextJoinsBlocks(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: BlockText, Text: "one"},
		{Type: BlockToolUse, ID: "x"},
		{Type: BlockText, Text: ""},
		{Type: BlockText, Text: "two"},
	}}
	assert.Equal(t, "one\ntwo", resp.Text())
	assert.Len(t, resp.ToolUses(), 1)
}

func TestToSDKMessages_EmptyToolInput(t *testing.T) {
	msgs := toSDKMessages([]Message{{Role: "assistant", Content: []ContentBlock{{
		Type: BlockToolUse, ID: "toolu_9", Name: "score_opportunity",
	}}}})
	require.Len(t, msgs, 1)
	raw, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"input":{}`)
}
