package extraction

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// The prompt wording directly affects output quality, so the base text is a
// versioned artifact rather than code. The embedded default can be replaced
// at startup with a file override.
//
//go:embed prompt.txt
var defaultPromptText string

// Prompt renders the instruction text sent to the model alongside each image.
type Prompt struct {
	base string
}

// NewPrompt returns a Prompt using the embedded default instruction text.
func NewPrompt() *Prompt {
	return &Prompt{base: defaultPromptText}
}

// LoadPrompt reads a replacement instruction text from a file.
func LoadPrompt(path string) (*Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("prompt file %s is empty", path)
	}
	return &Prompt{base: string(data)}, nil
}

// Render composes the full prompt. When a column set is supplied the model is
// instructed to map extracted data onto exactly those keys.
func (p *Prompt) Render(columns []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.base))
	if len(columns) > 0 {
		b.WriteString("\n\nMap the extracted data onto exactly these JSON keys: ")
		b.WriteString(strings.Join(columns, ", "))
		b.WriteString(". Use null for any key whose category is not present in the document. Do not add any other keys.")
	}
	return b.String()
}
