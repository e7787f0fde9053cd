package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/materialquote/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:            "test-key",
		BaseURL:           baseURL + "/",
		RequestsPerMinute: 6000,
		MediaUsername:     "AC123",
		MediaPassword:     "secret",
		RetryMax:          2,
		Timeout:           5 * time.Second,
	}, zerolog.Nop())
}

// newMediaServer serves a fake gateway media file that requires basic auth
func newMediaServer(t *testing.T, contentType string, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", contentType)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{}, zerolog.Nop())

	assert.Equal(t, defaultBaseURL, client.config.BaseURL)
	assert.Equal(t, defaultTranscribeModel, client.config.TranscribeModel)
	assert.Equal(t, defaultVisionModel, client.config.VisionModel)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
}

func TestTranscribe_Success(t *testing.T) {
	media := newMediaServer(t, "audio/ogg; codecs=opus", "OggS-bytes")

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, defaultTranscribeModel, r.FormValue("model"))
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "voice.ogg", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "OggS-bytes", string(data))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"  need ten bags cement  "}`)
	}))
	defer api.Close()

	text, err := newTestClient(api.URL).Transcribe(context.Background(), media.URL+"/voice")
	require.NoError(t, err)
	assert.Equal(t, "need ten bags cement", text)
}

func TestTranscribe_EmptyTranscript(t *testing.T) {
	media := newMediaServer(t, "audio/ogg", "x")
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text":""}`)
	}))
	defer api.Close()

	_, err := newTestClient(api.URL).Transcribe(context.Background(), media.URL)
	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
}

func TestTranscribe_RetriesServerErrors(t *testing.T) {
	media := newMediaServer(t, "audio/ogg", "x")

	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"text":"5 bags cement"}`)
	}))
	defer api.Close()

	text, err := newTestClient(api.URL).Transcribe(context.Background(), media.URL)
	require.NoError(t, err)
	assert.Equal(t, "5 bags cement", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTranscribe_APIRejects(t *testing.T) {
	media := newMediaServer(t, "audio/ogg", "x")
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer api.Close()

	_, err := newTestClient(api.URL).Transcribe(context.Background(), media.URL)
	assert.ErrorIs(t, err, domain.ErrTranscriptionFailed)
}

func TestDownloadMedia_Errors(t *testing.T) {
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer missing.Close()

	client := newTestClient("http://127.0.0.1:1")

	_, err := client.Transcribe(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMediaUnavailable)

	_, err = client.ExtractText(context.Background(), missing.URL)
	assert.ErrorIs(t, err, domain.ErrMediaUnavailable)
}

func TestDownloadMedia_Unauthorized(t *testing.T) {
	media := newMediaServer(t, "image/png", "png")
	client := NewClient(Config{RetryMax: 0}, zerolog.Nop())

	_, err := client.ExtractText(context.Background(), media.URL)
	assert.ErrorIs(t, err, domain.ErrMediaUnavailable)
}

func TestExtractText_Success(t *testing.T) {
	media := newMediaServer(t, "image/png", "png-bytes")

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, defaultVisionModel, gjson.GetBytes(body, "model").String())
		assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "text", gjson.GetBytes(body, "messages.0.content.0.type").String())
		imageURL := gjson.GetBytes(body, "messages.0.content.1.image_url.url").String()
		assert.True(t, strings.HasPrefix(imageURL, "data:image/png;base64,"))

		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"cement 10 bags\nsand 2 ton\n"}}]}`)
	}))
	defer api.Close()

	text, err := newTestClient(api.URL).ExtractText(context.Background(), media.URL)
	require.NoError(t, err)
	assert.Equal(t, "cement 10 bags\nsand 2 ton", text)
}

func TestExtractText_NoChoices(t *testing.T) {
	media := newMediaServer(t, "image/jpeg", "jpg")
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer api.Close()

	_, err := newTestClient(api.URL).ExtractText(context.Background(), media.URL)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestPost_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient("http://127.0.0.1:1").post(ctx, "/v1/chat/completions", "application/json", []byte("{}"))
	assert.Error(t, err)
}

func TestAudioExtension(t *testing.T) {
	tests := map[string]string{
		"audio/ogg":  ".ogg",
		"audio/mpeg": ".mp3",
		"audio/mp4":  ".m4a",
		"audio/amr":  ".amr",
		"":           ".ogg",
	}
	for contentType, want := range tests {
		assert.Equal(t, want, audioExtension(contentType), contentType)
	}
}
