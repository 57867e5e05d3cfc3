package chatmodel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestGenerateContentSendsSystemPromptAndParsesToolCalls(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"normalize_phone_number","arguments":"{\"phone_input\":\"07 81 60 23 52\"}"}}]}}]}`))
	}))
	defer srv.Close()

	m := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	req := &model.LLMRequest{
		Contents: []*genai.Content{userText("mon numéro est le 07 81 60 23 52")},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: userText("Tu es l'agent d'identification."),
			Tools: []*genai.Tool{{
				FunctionDeclarations: []*genai.FunctionDeclaration{{
					Name:        "normalize_phone_number",
					Description: "Normalize a phone number",
				}},
			}},
		},
	}

	var got *model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = resp
	}

	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("expected system + user messages, got %+v", captured.Messages)
	}
	if captured.Model != defaultModel || captured.ToolChoice != "auto" || len(captured.Tools) != 1 {
		t.Fatalf("unexpected request payload %+v", captured)
	}
	if got == nil || len(got.Content.Parts) != 1 || got.Content.Parts[0].FunctionCall == nil {
		t.Fatalf("expected a single function call part, got %+v", got)
	}
	call := got.Content.Parts[0].FunctionCall
	if call.Name != "normalize_phone_number" || call.Args["phone_input"] != "07 81 60 23 52" {
		t.Fatalf("unexpected function call %+v", call)
	}
}

func TestGenerateContentReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer srv.Close()

	m := New(Config{APIKey: "bad", BaseURL: srv.URL})
	for _, err := range m.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		if err == nil || err.Error() != "chat api error: invalid api key" {
			t.Fatalf("unexpected error %v", err)
		}
	}
}

func userText(text string) *genai.Content {
	return &genai.Content{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(text)}}
}
