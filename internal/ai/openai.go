package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatReq struct {
	Model    string      `json:"model"`
	Messages []openAIMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type openAIErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

type openAIChatResp struct {
	Choices []struct {
		Message openAIMsg `json:"message"`
	} `json:"choices"`
	Error *openAIErrorBody `json:"error,omitempty"`
}

func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("openai: http client is nil")
	}
	// The key is only checked here so the process can start without one.
	if strings.TrimSpace(p.APIKey) == "" {
		return "", &CompletionError{Provider: "openai", Message: "api key is required", Err: ErrNotConfigured}
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", &CompletionError{Provider: "openai", Message: "model is required", Err: ErrNotConfigured}
	}

	reqBody := openAIChatReq{
		Model:    model,
		Stream:   false,
		Messages: toOpenAIMsgs(messages),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", &CompletionError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Message:    upstreamErrorMessage(body, resp.StatusCode),
		}
	}

	var decoded openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &CompletionError{Provider: "openai", StatusCode: resp.StatusCode, Message: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", &CompletionError{Provider: "openai", StatusCode: resp.StatusCode, Message: "empty response"}
	}
	return decoded.Choices[0].Message.Content, nil
}

func toOpenAIMsgs(messages []Message) []openAIMsg {
	out := make([]openAIMsg, 0, len(messages))
	for _, m := range messages {
		out = append(out, openAIMsg{Role: m.Role, Content: m.Content})
	}
	return out
}

// upstreamErrorMessage prefers the structured {"error":{"message":...}} body
// and falls back to the raw text.
func upstreamErrorMessage(body []byte, status int) string {
	var decoded struct {
		Error *openAIErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	return msg
}
