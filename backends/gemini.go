package backends

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/nijaru/clipzaar/transcription"
	"github.com/pkg/errors"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
	transcribePrompt     = "Please transcribe this audio file. Return only the transcribed text without any additional commentary."
)

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Gemini sends audio inline to generateContent. It returns plain text only,
// without segment timing.
type Gemini struct {
	cfg GeminiConfig
	client
}

func NewGemini(cfg GeminiConfig, opts ...Option) (*Gemini, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	return &Gemini{cfg: cfg, client: newClient(opts)}, nil
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType string) (transcription.Result, error) {
	text, err := g.generate(ctx, "gemini transcribe", geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: transcribePrompt},
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(audio)}},
			},
		}},
	})
	if err != nil {
		return transcription.Result{}, err
	}
	return transcription.Result{Text: text}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string, maxOutputTokens int, temperature float64) (string, error) {
	return g.generate(ctx, "gemini complete", geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: maxOutputTokens,
			Temperature:     temperature,
		},
	})
}

func (g *Gemini) generate(ctx context.Context, op string, payload geminiRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrapf(err, "%s: encode request", op)
	}
	endpoint := g.cfg.BaseURL + "/models/" + url.PathEscape(g.cfg.Model) + ":generateContent"

	body, err := g.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-goog-api-key", g.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", errors.Wrapf(err, "%s: decode response: %s", op, snippet(string(body)))
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return "", errors.Errorf("%s: prompt blocked: %s", op, decoded.PromptFeedback.BlockReason)
	}

	for _, candidate := range decoded.Candidates {
		var builder strings.Builder
		for _, part := range candidate.Content.Parts {
			builder.WriteString(part.Text)
		}
		if text := strings.TrimSpace(builder.String()); text != "" {
			return text, nil
		}
	}
	return "", errors.Errorf("%s: empty content", op)
}
