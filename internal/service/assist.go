package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/todoshare/server-go/internal/errors"
)

const optimizeSystemPrompt = `You rewrite todo items. Improve clarity and grammar while strictly ` +
	`preserving the original meaning. Reply in the language of the input. Never invent details ` +
	`(quantities, dates, places) that are not in the original. Return only the rewritten text ` +
	`with no explanation or prefix. If the text is already clear, return it unchanged.`

// answerPrefixes are boilerplate some models prepend despite the prompt.
var answerPrefixes = []string{
	"Optimized text:", "Optimized:", "Rewritten:", "Result:",
	"优化后的文本：", "优化后：", "优化结果：", "优化：",
}

// ChatResult is the response of the free-form assistant endpoint.
type ChatResult struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Model    string `json:"model"`
}

// OptimizeResult reports a todo text rewrite.
type OptimizeResult struct {
	Original  string `json:"original"`
	Optimized string `json:"optimized"`
	Changed   bool   `json:"changed"`
}

// AssistService calls an OpenAI-compatible chat completions API for the
// demo assistant and the todo text optimizer.
type AssistService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewAssistService(client *http.Client, baseURL, apiKey, model string) *AssistService {
	if client == nil {
		client = http.DefaultClient
	}
	return &AssistService{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

// Configured reports whether an API key is present. Unconfigured
// deployments keep the endpoints but answer 503.
func (s *AssistService) Configured() bool {
	return s.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *AssistService) complete(ctx context.Context, system, user string) (string, error) {
	if !s.Configured() {
		return "", apperrors.Unavailable("AI assistant is not configured")
	}

	payload, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", apperrors.Internal("failed to encode chat request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.Internal("failed to create chat request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.External("ai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.External("ai", fmt.Errorf("status %d", resp.StatusCode))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.External("ai", err)
	}
	if len(out.Choices) == 0 {
		return "", apperrors.External("ai", fmt.Errorf("empty choices"))
	}
	return out.Choices[0].Message.Content, nil
}

// Chat answers a free-form prompt.
func (s *AssistService) Chat(ctx context.Context, prompt string) (*ChatResult, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Hello"
	}

	answer, err := s.complete(ctx, "You are a helpful assistant. Answer in the language of the question.", prompt)
	if err != nil {
		return nil, err
	}
	return &ChatResult{Prompt: prompt, Response: strings.TrimSpace(answer), Model: s.model}, nil
}

// Optimize rewrites a todo text for clarity. Model boilerplate such as
// surrounding quotes or an "Optimized:" prefix is stripped before
// comparing against the original.
func (s *AssistService) Optimize(ctx context.Context, text string) (*OptimizeResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.MissingRequired("text")
	}

	answer, err := s.complete(ctx, optimizeSystemPrompt, fmt.Sprintf("Rewrite this todo item: %q", text))
	if err != nil {
		return nil, err
	}

	optimized := strings.TrimSpace(answer)
	if optimized == "" {
		optimized = text
	}
	optimized = strings.Trim(optimized, `"'`)
	for _, prefix := range answerPrefixes {
		if strings.HasPrefix(optimized, prefix) {
			optimized = strings.TrimSpace(strings.TrimPrefix(optimized, prefix))
			break
		}
	}

	return &OptimizeResult{
		Original:  text,
		Optimized: optimized,
		Changed:   optimized != text,
	}, nil
}
