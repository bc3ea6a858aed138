// Package llm delegates structured extraction and speech transcription to an
// OpenAI-compatible API. Apollo does not interpret the model's answers beyond
// decoding them into a table.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/httpclient"
	"github.com/agrolog/apollo/internal/model"
)

var (
	// ErrUnsupportedMedia means an uploaded photo or recording is not of the
	// expected kind.
	ErrUnsupportedMedia = errors.New("unsupported media")

	// ErrBadAnswer means the model replied with something that is not a table.
	ErrBadAnswer = errors.New("malformed model answer")
)

// Client talks to the chat-completions and transcription endpoints.
type Client struct {
	http             *httpclient.Client
	model            string
	transcriberModel string
}

// New creates a Client from the LLM configuration.
func New(cfg config.LLMConfig) *Client {
	return &Client{
		http: httpclient.New(cfg.BaseURL, cfg.APIKey,
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
		model:            cfg.Model,
		transcriberModel: cfg.TranscriberModel,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []contentPart for images
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractTable turns a free-text field report into a table of operations.
func (c *Client) ExtractTable(ctx context.Context, message string) (model.Table, error) {
	return c.extract(ctx, "process_message", message)
}

// ExtractTableFromImage does the same for a photo of a report. The image
// type is detected from the bytes; declared is only a fallback hint.
func (c *Client) ExtractTableFromImage(ctx context.Context, photo []byte, declared string) (model.Table, error) {
	mt := mimetype.Detect(photo)
	if !strings.HasPrefix(mt.String(), "image/") {
		return model.Table{}, fmt.Errorf("llm: photo is %s (declared %q): %w", mt.String(), declared, ErrUnsupportedMedia)
	}
	dataURL := "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(photo)

	parts := []contentPart{
		{Type: "text", Text: photoInstruction},
		{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
	}
	return c.extract(ctx, "process_photo", parts)
}

func (c *Client) extract(ctx context.Context, op string, userContent any) (model.Table, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatResponse
	if err := c.http.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return model.Table{}, fmt.Errorf("llm %s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return model.Table{}, fmt.Errorf("llm %s: empty choices: %w", op, ErrBadAnswer)
	}

	table, err := parseTable(resp.Choices[0].Message.Content)
	if err != nil {
		return model.Table{}, fmt.Errorf("llm %s: %w", op, err)
	}
	return table, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends a voice message to the transcription endpoint and returns
// the recognized text. ext names the container ("ogg", "mp3"); when empty it
// is taken from the detected type.
func (c *Client) Transcribe(ctx context.Context, audio []byte, ext string) (string, error) {
	mt := mimetype.Detect(audio)
	if !isAudio(mt) {
		return "", fmt.Errorf("llm: audio is %s: %w", mt.String(), ErrUnsupportedMedia)
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = strings.TrimPrefix(mt.Extension(), ".")
	}

	var resp transcriptionResponse
	err := c.http.PostMultipart(ctx, "/audio/transcriptions",
		map[string]string{"model": c.transcriberModel},
		httpclient.FilePart{Field: "file", Filename: "audio." + ext, Data: audio},
		&resp)
	if err != nil {
		return "", fmt.Errorf("llm transcribe: %w", err)
	}
	return resp.Text, nil
}

// isAudio accepts audio types and the generic containers voice notes arrive in.
func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") || s == "application/ogg" {
			return true
		}
	}
	return false
}
