// Package llm adapts generative backends (OpenAI, a local Ollama server) to
// the small interfaces the documentary generators need.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System and User build messages.
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	JSON        bool
	Temperature float64
}

// Chatter returns the assistant text for a request.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ImageRequest describes one generated image.
type ImageRequest struct {
	Model   string
	Prompt  string
	Size    string
	Quality string
}

// ImageGenerator returns PNG bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// SpeechRequest describes one text-to-speech call.
type SpeechRequest struct {
	Model string
	Voice string
	Speed float64
	Input string
}

// Speaker returns MP3 bytes for text.
type Speaker interface {
	Speak(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// ErrEmptyResponse is returned when a backend answers with no content.
var ErrEmptyResponse = errors.New("empty model response")

// DecodeJSON unmarshals model output into target. It tolerates markdown
// code fences and prose around a single JSON object.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyResponse
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := extractObject(stripFence(trimmed))
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (payload: %s)", err, snippet(sanitized))
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

func snippet(s string) string {
	const max = 160
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
