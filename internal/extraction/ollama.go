package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama implements the Extractor interface against a local Ollama server,
// for running vision models without a remote API key.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	prompt  *Prompt
	sleep   func(time.Duration)
}

// NewOllama creates a new Ollama Extractor instance. Vision-capable models
// such as llava or qwen2-vl work best for document extraction.
func NewOllama(baseURL string, modelName string, prompt *Prompt) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}
	if prompt == nil {
		prompt = NewPrompt()
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			// Local vision models can be slow on first load
			Timeout: 120 * time.Second,
		},
		prompt: prompt,
		sleep:  time.Sleep,
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Extract sends the document image to Ollama's chat API and post-processes
// the response into a Record.
func (o *Ollama) Extract(imageData []byte, contentType string, columns []string) (Record, error) {
	png, err := normalizeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	text, err := withRetry(o.sleep, func() (string, error) {
		return o.chat(png, columns)
	})
	if err != nil {
		return nil, err
	}

	return recordFromText(text, columns)
}

func (o *Ollama) chat(png []byte, columns []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading photographed documents and extracting structured information. Read all text in the image carefully.",
			},
			{
				Role:    "user",
				Content: o.prompt.Render(columns),
			},
		},
		Images: []string{base64.StdEncoding.EncodeToString(png)},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return chatResp.Message.Content, nil
}

// Close closes the Ollama client (no-op for HTTP client).
func (o *Ollama) Close() error {
	return nil
}
