package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/nijaru/clipzaar/acquisition"
	"github.com/nijaru/clipzaar/models"
	"github.com/nijaru/clipzaar/pipeline"
	"github.com/nijaru/clipzaar/utils"
	"github.com/nijaru/clipzaar/validation"
	"github.com/sirupsen/logrus"
)

const (
	maxBodyBytes   = 64 * 1024
	archiveTimeout = 30 * time.Second
)

type Processor interface {
	Process(ctx context.Context, req models.Request) (*models.Result, error)
}

type Prober interface {
	Probe(ctx context.Context, url string) []acquisition.ProbeResult
}

type Archiver interface {
	Save(ctx context.Context, result *models.Result) (string, error)
}

type Handler struct {
	processor      Processor
	prober         Prober
	archiver       Archiver
	requestTimeout time.Duration
	logger         *logrus.Logger
}

type Option func(*Handler)

func WithArchiver(archiver Archiver) Option {
	return func(h *Handler) {
		h.archiver = archiver
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func New(processor Processor, prober Prober, opts ...Option) *Handler {
	h := &Handler{
		processor:      processor,
		prober:         prober,
		requestTimeout: 15 * time.Minute,
		logger:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/process", h.ProcessHandler)
	mux.HandleFunc("POST /api/validate", h.ValidateHandler)
	mux.HandleFunc("POST /api/demo", h.DemoHandler)
	mux.HandleFunc("POST /api/test-download", h.TestDownloadHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
	return mux
}

// videoRequest accepts either "url" or "youtube_url", as JSON or form data.
type videoRequest struct {
	URL        string `json:"url"`
	YouTubeURL string `json:"youtube_url"`
	Email      string `json:"email"`
}

func (v videoRequest) videoURL() string {
	if strings.TrimSpace(v.URL) != "" {
		return v.URL
	}
	return v.YouTubeURL
}

func readRequest(r *http.Request) (videoRequest, error) {
	var req videoRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := utils.DecodeJSON(r, &req, maxBodyBytes); err != nil {
			return req, err
		}
		return req, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.URL = r.FormValue("url")
	req.YouTubeURL = r.FormValue("youtube_url")
	req.Email = r.FormValue("email")
	return req, nil
}

type processResponse struct {
	Success         bool     `json:"success"`
	VideoID         string   `json:"video_id"`
	VideoTitle      string   `json:"video_title"`
	Duration        string   `json:"duration"`
	TwitterThread   string   `json:"twitter_thread"`
	ReelSuggestions string   `json:"reel_suggestions"`
	Email           string   `json:"email"`
	Degraded        []string `json:"degraded"`
	CacheHit        bool     `json:"cache_hit"`
}

type stageErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

func (h *Handler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		utils.HandleError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	result, err := h.processor.Process(ctx, models.Request{URL: req.videoURL(), ContactEmail: req.Email})
	if err != nil {
		h.writeStageError(ctx, w, err)
		return
	}

	h.archive(r.Context(), result)

	degraded := result.Degraded
	if degraded == nil {
		degraded = []string{}
	}
	utils.WriteJSON(w, http.StatusOK, processResponse{
		Success:         true,
		VideoID:         result.VideoID,
		VideoTitle:      result.Title,
		Duration:        result.FormattedDuration(),
		TwitterThread:   result.Content.SocialThread,
		ReelSuggestions: result.Content.ClipSuggestions,
		Email:           result.ContactEmail,
		Degraded:        degraded,
		CacheHit:        result.CacheHit,
	})
}

func (h *Handler) writeStageError(ctx context.Context, w http.ResponseWriter, err error) {
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		h.logger.WithError(err).Error("Unexpected pipeline error")
		utils.HandleError(w, "An error occurred while processing your request. Please try again later.", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case stageErr.Stage == models.StageValidation:
		status = http.StatusBadRequest
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	utils.WriteJSON(w, status, stageErrorResponse{Error: stageErr.Reason, Stage: stageErr.Stage.String()})
}

func (h *Handler) archive(ctx context.Context, result *models.Result) {
	if h.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	key, err := h.archiver.Save(ctx, result)
	if err != nil {
		h.logger.WithError(err).WithField("videoID", result.VideoID).Warn("Failed to archive result")
		return
	}
	h.logger.WithFields(logrus.Fields{"videoID": result.VideoID, "key": key}).Info("Result archived")
}

func (h *Handler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusOK, validation.Result{Valid: false, Error: "Invalid request body"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, validation.ValidateURL(req.videoURL()))
}

type probeResponse struct {
	VideoID string                    `json:"video_id"`
	Results []acquisition.ProbeResult `json:"results"`
}

func (h *Handler) TestDownloadHandler(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		utils.HandleError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.videoURL()) == "" {
		utils.HandleError(w, "URL required", http.StatusBadRequest)
		return
	}
	ref, err := validation.Resolve(req.videoURL())
	if err != nil {
		utils.HandleError(w, "Invalid YouTube URL", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	h.logger.WithField("url", ref.RawURL).Info("Probing download strategies")
	utils.WriteJSON(w, http.StatusOK, probeResponse{
		VideoID: ref.ID,
		Results: h.prober.Probe(ctx, ref.RawURL),
	})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
