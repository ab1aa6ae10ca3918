package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// groqTimeout bounds one generation request; generation responses are slow
// compared to ordinary API calls.
const groqTimeout = 120 * time.Second

// GroqClient talks to the Groq chat-completions API.
type GroqClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGroqClient creates a Groq backend. Pass nil to use a default client.
func NewGroqClient(hc *http.Client) *GroqClient {
	if hc == nil {
		hc = &http.Client{Timeout: groqTimeout}
	}
	return &GroqClient{httpClient: hc, baseURL: groqBaseURL}
}

type groqRequest struct {
	Model          string        `json:"model"`
	Messages       []groqMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *groqFormat   `json:"response_format,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqFormat struct {
	Type string `json:"type"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements Client.
func (c *GroqClient) Generate(ctx context.Context, key, model, prompt string, jsonMode bool) (string, error) {
	reqBody := groqRequest{
		Model:       model,
		Messages:    []groqMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	}
	if jsonMode {
		reqBody.ResponseFormat = &groqFormat{Type: "json_object"}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", parseAPIError("groq", resp)
	}

	var out groqResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTransient, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrTransient)
	}
	return out.Choices[0].Message.Content, nil
}
