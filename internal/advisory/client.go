// Package advisory calls an external text/vision model to produce
// human-readable proctoring messages: a warning when the candidate leaves
// the exam tab, and a classification of webcam frames. Both are single-shot
// prompts against an OpenAI-compatible chat completions endpoint. A remote
// failure is never fatal: warning generation falls back to a fixed string,
// frame analysis surfaces an error the caller absorbs.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/guardianview/guardian-backend/internal/model"
)

// FallbackTabSwitchWarning is displayed whenever the remote warning call
// fails. Violation recording never depends on the remote call succeeding.
const FallbackTabSwitchWarning = "You have switched tabs or minimized the window. This action is against exam rules and has been logged. Please return to the exam immediately to avoid disqualification."

// ErrInvalidDataURI rejects frame input that is not a base64 data URI with
// an explicit MIME type.
var ErrInvalidDataURI = errors.New("photo must be a base64 data URI with an explicit MIME type")

const (
	warningPrompt = "You are a proctor overseeing an exam. A student has switched tabs during the exam. " +
		"Generate a warning message to display to the user. The message must be clear, concise, and firm, " +
		"reminding the student of the exam rules and the consequences of cheating. Respond with the warning text only."

	framePrompt = "You are an AI exam proctor. Analyze the provided image of a student taking an exam. " +
		"Determine if the student is clearly not looking at the computer screen. Also identify any prohibited " +
		"items or other people in the frame: mobile phones, books, notes, headphones, or other electronic devices. " +
		`Respond with a single JSON object of the shape {"is_looking_away": bool, "prohibited_objects": [string]} and nothing else.`
)

// Client is the AdvisoryTextProvider. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	log        zerolog.Logger
}

// NewClient creates an advisory client against an OpenAI-compatible
// chat completions endpoint.
func NewClient(url, apiKey, modelName string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		url:        url,
		apiKey:     apiKey,
		model:      modelName,
		log:        log.With().Str("component", "advisory").Logger(),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type imagePart struct {
	Type     string  `json:"type"`
	Text     string  `json:"text,omitempty"`
	ImageURL *imgURL `json:"image_url,omitempty"`
}

type imgURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// TabSwitchWarning returns a warning string for a detected tab switch.
// It always returns a non-empty string: any transport, status or parse
// failure yields the fixed fallback.
func (c *Client) TabSwitchWarning(ctx context.Context, detected bool) string {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf("%s\n\nTab switch detected: %t", warningPrompt, detected)},
		},
		Temperature: 0.7,
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		c.log.Warn().Err(err).Msg("Warning generation failed, using fallback")
		return FallbackTabSwitchWarning
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return FallbackTabSwitchWarning
	}
	return content
}

// AnalyzeFrame classifies a webcam frame. The input must be a base64 data
// URI with an explicit MIME type ("data:<mime>;base64,<data>"). On success
// both output fields are always present; ProhibitedObjects is an empty
// slice, never nil, when nothing is detected.
func (c *Client) AnalyzeFrame(ctx context.Context, photoDataURI string) (model.FrameAnalysis, error) {
	if err := validateDataURI(photoDataURI); err != nil {
		return model.FrameAnalysis{}, err
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: []imagePart{
				{Type: "text", Text: framePrompt},
				{Type: "image_url", ImageURL: &imgURL{URL: photoDataURI}},
			}},
		},
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return model.FrameAnalysis{}, fmt.Errorf("analyze frame: %w", err)
	}

	var analysis model.FrameAnalysis
	if err := json.Unmarshal([]byte(extractJSON(content)), &analysis); err != nil {
		return model.FrameAnalysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	if analysis.ProhibitedObjects == nil {
		analysis.ProhibitedObjects = []string{}
	}
	return analysis, nil
}

// complete performs a single chat completion round trip. No retries: a
// failure is reported once and absorbed by the caller.
func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("advisory call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("advisory status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("advisory returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// validateDataURI checks the "data:<mime>;base64,<data>" shape.
func validateDataURI(uri string) error {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ErrInvalidDataURI
	}
	mime, rest, ok := strings.Cut(rest, ";base64,")
	if !ok || mime == "" || rest == "" {
		return ErrInvalidDataURI
	}
	if !strings.Contains(mime, "/") {
		return ErrInvalidDataURI
	}
	return nil
}

// extractJSON strips markdown code fences some models wrap around JSON.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = after
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = after
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
