package rag

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/pario-ai/ragcache/pkg/models"
)

// DefaultTemplate asks for a structured tutoring answer grounded in the
// retrieved context.
const DefaultTemplate = `You are a helpful Tutor and help me understand the topic.
Give complete answer.
Use the context below to answer the question accurately and completely.
Provide sections for Definition, Uses, Types, Pros, and Cons.

<context>
{{.Context}}
</context>

Question: {{.Question}}
`

// Prompt renders retrieved chunks and a question into an LLM prompt.
type Prompt struct {
	tmpl *template.Template
}

// NewPrompt parses text as a prompt template. It may reference
// {{.Context}} and {{.Question}}.
func NewPrompt(text string) (*Prompt, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: tmpl}, nil
}

// LoadPrompt reads a template from path, or returns DefaultTemplate when path is empty.
func LoadPrompt(path string) (*Prompt, error) {
	if path == "" {
		return NewPrompt(DefaultTemplate)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	return NewPrompt(string(data))
}

// Render stuffs every chunk into the context section.
func (p *Prompt) Render(question string, chunks []models.ScoredChunk) (string, error) {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}

	var b strings.Builder
	err := p.tmpl.Execute(&b, struct {
		Context  string
		Question string
	}{
		Context:  strings.Join(parts, "\n\n"),
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
