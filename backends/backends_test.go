package backends

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() []Option {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return []Option{WithLogger(logger), WithSleeper(func(time.Duration) {})}
}

func TestOpenAITranscribeParsesSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "segment", r.FormValue("timestamp_granularities[]"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "audio-bytes", string(data))
		assert.Equal(t, "audio.m4a", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "hello there",
			"segments": []any{
				map[string]any{"start": 0.0, "end": 1.5, "text": "hello"},
				map[string]any{"start": 1.5, "end": 3.0, "text": "there"},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: server.URL}, testOptions()...)
	require.NoError(t, err)

	result, err := client.Transcribe(context.Background(), []byte("audio-bytes"), "audio/mp4")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, 1.5, result.Segments[1].Start)
	assert.Equal(t, "there", result.Segments[1].Text)
}

func TestOpenAICompleteSendsSettings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 2000, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "write a thread", req.Messages[0].Content)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": " Tweet 1: hi "}}},
		})
	}))
	defer server.Close()

	client, err := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: server.URL}, testOptions()...)
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "write a thread", 2000, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "Tweet 1: hi", text)
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)
}

func TestRetryOnServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer server.Close()

	var slept []time.Duration
	opts := append(testOptions(), WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	client, err := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: server.URL}, opts...)
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "p", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
}

func TestNoRetryOnClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: server.URL}, testOptions()...)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "p", 10, 0)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeminiTranscribeSendsInlineAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gkey", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		inline := req.Contents[0].Parts[1].InlineData
		require.NotNil(t, inline)
		assert.Equal(t, "audio/mpeg", inline.MimeType)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3")), inline.Data)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": "spoken "},
					map[string]any{"text": "words"},
				}},
			}},
		})
	}))
	defer server.Close()

	client, err := NewGemini(GeminiConfig{APIKey: "gkey", BaseURL: server.URL}, testOptions()...)
	require.NoError(t, err)

	result, err := client.Transcribe(context.Background(), []byte("mp3"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "spoken words", result.Text)
	assert.Empty(t, result.Segments)
}

func TestGeminiCompleteEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.GenerationConfig)
		assert.Equal(t, 2000, req.GenerationConfig.MaxOutputTokens)
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client, err := NewGemini(GeminiConfig{APIKey: "gkey", BaseURL: server.URL}, testOptions()...)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "p", 2000, 0.7)
	assert.ErrorContains(t, err, "empty content")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
}
