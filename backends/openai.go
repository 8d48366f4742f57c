package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/nijaru/clipzaar/models"
	"github.com/nijaru/clipzaar/transcription"
	"github.com/pkg/errors"
)

const (
	defaultOpenAIBaseURL         = "https://api.openai.com/v1"
	defaultOpenAITranscribeModel = "whisper-1"
	defaultOpenAIChatModel       = "gpt-4o-mini"
)

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	ChatModel       string
}

// OpenAI uses the audio transcription endpoint with segment timestamps and
// the chat completions endpoint for text generation.
type OpenAI struct {
	cfg OpenAIConfig
	client
}

func NewOpenAI(cfg OpenAIConfig, opts ...Option) (*OpenAI, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = defaultOpenAITranscribeModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultOpenAIChatModel
	}
	return &OpenAI{cfg: cfg, client: newClient(opts)}, nil
}

type whisperResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, mimeType string) (transcription.Result, error) {
	var payload bytes.Buffer
	writer := multipart.NewWriter(&payload)

	fields := [][2]string{
		{"model", o.cfg.TranscribeModel},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return transcription.Result{}, errors.Wrap(err, "openai transcribe: write form")
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+audioFilename(mimeType)+`"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return transcription.Result{}, errors.Wrap(err, "openai transcribe: create file part")
	}
	if _, err := part.Write(audio); err != nil {
		return transcription.Result{}, errors.Wrap(err, "openai transcribe: write audio")
	}
	if err := writer.Close(); err != nil {
		return transcription.Result{}, errors.Wrap(err, "openai transcribe: close form")
	}
	form := payload.Bytes()

	body, err := o.do(ctx, "openai transcribe", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/audio/transcriptions", bytes.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return transcription.Result{}, err
	}

	var decoded whisperResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return transcription.Result{}, errors.Wrapf(err, "openai transcribe: decode response: %s", snippet(string(body)))
	}

	result := transcription.Result{Text: decoded.Text}
	for _, seg := range decoded.Segments {
		result.Segments = append(result.Segments, models.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return result, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, maxOutputTokens int, temperature float64) (string, error) {
	encoded, err := json.Marshal(chatRequest{
		Model:       o.cfg.ChatModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxOutputTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "openai complete: encode request")
	}

	body, err := o.do(ctx, "openai complete", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", errors.Wrapf(err, "openai complete: decode response: %s", snippet(string(body)))
	}
	if decoded.Error != nil {
		return "", errors.Errorf("openai complete: api error: %s", decoded.Error.Message)
	}
	for _, choice := range decoded.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", errors.New("openai complete: empty content")
}

func audioFilename(mimeType string) string {
	switch mimeType {
	case "audio/mp4":
		return "audio.m4a"
	case "audio/webm":
		return "audio.webm"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/wav":
		return "audio.wav"
	case "audio/aac":
		return "audio.aac"
	case "audio/flac":
		return "audio.flac"
	default:
		return "audio.mp3"
	}
}
