package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/materialquote/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL         = "https://api.openai.com"
	defaultTranscribeModel = "whisper-1"
	defaultVisionModel     = "gpt-4o-mini"
	maxMediaBytes          = 16 << 20

	extractionPrompt = "This image is a list of building materials. " +
		"Write each material with its quantity and unit on its own line, exactly as written. " +
		"Reply with the list only."
)

// Config holds settings for the OpenAI-compatible speech and vision client
type Config struct {
	APIKey            string
	BaseURL           string
	TranscribeModel   string
	VisionModel       string
	RequestsPerMinute int
	MediaUsername     string
	MediaPassword     string
	RetryMax          int
	Timeout           time.Duration
}

// Client turns voice notes and photos of material lists into text.
// It implements domain.Transcriber and domain.TextExtractor.
type Client struct {
	httpClient  *retryablehttp.Client
	config      Config
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
}

// NewClient creates a new speech and vision client
func NewClient(config Config, logger zerolog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.TranscribeModel == "" {
		config.TranscribeModel = defaultTranscribeModel
	}
	if config.VisionModel == "" {
		config.VisionModel = defaultVisionModel
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.RetryMax < 0 {
		config.RetryMax = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = config.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = config.Timeout

	limit := rate.Limit(float64(config.RequestsPerMinute) / 60)
	burst := config.RequestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient:  retryClient,
		config:      config,
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      logger.With().Str("component", "openai").Logger(),
	}
}

// Transcribe downloads a voice note and returns its transcript
func (c *Client) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	media, contentType, err := c.downloadMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("model", c.config.TranscribeModel); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}
	part, err := form.CreateFormFile("file", "voice"+audioExtension(contentType))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}
	if _, err := part.Write(media); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	resp, err := c.post(ctx, "/v1/audio/transcriptions", form.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	text := strings.TrimSpace(gjson.GetBytes(resp, "text").String())
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}

	c.logger.Debug().Int("chars", len(text)).Msg("voice note transcribed")
	return text, nil
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// ExtractText downloads an image and asks the vision model to read the material list in it
func (c *Client) ExtractText(ctx context.Context, mediaURL string) (string, error) {
	media, contentType, err := c.downloadMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(media)
	payload, err := json.Marshal(chatRequest{
		Model: c.config.VisionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		MaxTokens: 1000,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	resp, err := c.post(ctx, "/v1/chat/completions", "application/json", payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	text := strings.TrimSpace(gjson.GetBytes(resp, "choices.0.message.content").String())
	if text == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrExtractionFailed)
	}

	c.logger.Debug().Int("chars", len(text)).Msg("image text extracted")
	return text, nil
}

// downloadMedia fetches a gateway media URL, using basic auth when configured
func (c *Client) downloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if mediaURL == "" {
		return nil, "", fmt.Errorf("%w: empty media url", domain.ErrMediaUnavailable)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}
	if c.config.MediaUsername != "" {
		req.SetBasicAuth(c.config.MediaUsername, c.config.MediaPassword)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", domain.ErrMediaUnavailable, resp.StatusCode)
	}

	media, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}
	if len(media) > maxMediaBytes {
		return nil, "", fmt.Errorf("%w: media larger than %d bytes", domain.ErrMediaUnavailable, maxMediaBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return media, strings.TrimSpace(contentType), nil
}

// post sends an authenticated request to the API and returns the body of a 200 response
func (c *Client) post(ctx context.Context, endpoint, contentType string, payload []byte) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "MaterialQuote/1.0")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("request failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Str("error", gjson.GetBytes(body, "error.message").String()).
			Msg("api error")
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Dur("elapsed", time.Since(start)).
		Msg("api call completed")
	return body, nil
}

func audioExtension(contentType string) string {
	switch contentType {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "audio/aac":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/amr":
		return ".amr"
	}
	return ".ogg"
}
