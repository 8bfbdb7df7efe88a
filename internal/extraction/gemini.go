package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Extractor interface using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	prompt *Prompt
	sleep  func(time.Duration)
}

// NewGemini creates a new Gemini Extractor instance. The client is built once
// from the API key and shared for the life of the process.
func NewGemini(apiKey string, modelName string, prompt *Prompt) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}
	if prompt == nil {
		prompt = NewPrompt()
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
		prompt: prompt,
		sleep:  time.Sleep,
	}, nil
}

// Extract sends the document image and prompt to Gemini and post-processes
// the text response into a Record. Rate-limited calls are retried with
// bounded exponential backoff before the failure is surfaced.
func (g *Gemini) Extract(imageData []byte, contentType string, columns []string) (Record, error) {
	png, err := normalizeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData wants the format suffix, and normalizeImage always
	// produces PNG
	parts := []genai.Part{
		genai.ImageData("png", png),
		genai.Text(g.prompt.Render(columns)),
	}

	text, err := withRetry(g.sleep, func() (string, error) {
		return g.generate(parts)
	})
	if err != nil {
		return nil, err
	}

	return recordFromText(text, columns)
}

func (g *Gemini) generate(parts []genai.Part) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no text returned", ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
