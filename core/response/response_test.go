package response_test

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tailored-agentic-units/lifeline/core/response"
)

func TestChatResponse_Content_StringContent(t *testing.T) {
	jsonData := `{
		"model": "gpt-4",
		"choices": [{
			"index": 0,
			"message": {
				"role": "assistant",
				"content": "  Estou aqui com você.  \n"
			}
		}]
	}`

	var resp response.ChatResponse
	if err := json.Unmarshal([]byte(jsonData), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	content := resp.Content()
	if content != "Estou aqui com você." {
		t.Errorf("got content %q, want %q", content, "Estou aqui com você.")
	}
}

func TestChatResponse_Content_EmptyChoices(t *testing.T) {
	jsonData := `{
		"model": "gpt-4",
		"choices": []
	}`

	var resp response.ChatResponse
	if err := json.Unmarshal([]byte(jsonData), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	content := resp.Content()
	if content != "" {
		t.Errorf("got content %q, want empty string", content)
	}
}

func TestParseChat(t *testing.T) {
	jsonData := `{
		"id": "chatcmpl-123",
		"object": "chat.completion",
		"created": 1677652288,
		"model": "gpt-4",
		"choices": [{
			"index": 0,
			"message": {
				"role": "assistant",
				"content": "Hello there!"
			},
			"finish_reason": "stop"
		}],
		"usage": {
			"prompt_tokens": 9,
			"completion_tokens": 12,
			"total_tokens": 21
		}
	}`

	resp, err := response.ParseChat([]byte(jsonData))
	if err != nil {
		t.Fatalf("ParseChat failed: %v", err)
	}

	if resp.ID != "chatcmpl-123" {
		t.Errorf("got ID %q, want %q", resp.ID, "chatcmpl-123")
	}

	if resp.Model != "gpt-4" {
		t.Errorf("got model %q, want %q", resp.Model, "gpt-4")
	}

	if len(resp.Choices) != 1 {
		t.Fatalf("got %d choices, want 1", len(resp.Choices))
	}

	if resp.Content() != "Hello there!" {
		t.Errorf("got content %q, want %q", resp.Content(), "Hello there!")
	}

	if resp.Usage == nil {
		t.Fatal("usage is nil")
	}

	if resp.Usage.TotalTokens != 21 {
		t.Errorf("got total tokens %d, want 21", resp.Usage.TotalTokens)
	}
}

func TestParseChat_InvalidJSON(t *testing.T) {
	if _, err := response.ParseChat([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"envelope", `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`, "Incorrect API key"},
		{"plain body", "bad gateway\n", "bad gateway"},
		{"long body", strings.Repeat("x", 300), strings.Repeat("x", 200) + "..."},
		{"long multibyte body", strings.Repeat("ã", 300), strings.Repeat("ã", 200) + "..."},
		{"multibyte body at limit", strings.Repeat("é", 200), strings.Repeat("é", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := response.ParseError([]byte(tt.body))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result %q is not valid UTF-8", got)
			}
		})
	}
}
