package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/materialquote/backend/config"
	"github.com/materialquote/backend/internal/domain"
	"github.com/materialquote/backend/internal/infrastructure/cache"
	"github.com/materialquote/backend/internal/infrastructure/metrics"
	"github.com/materialquote/backend/internal/infrastructure/sheet"
	"github.com/materialquote/backend/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priceSheet = "name,price,unit,aliases,category\n" +
	"Cement,350,bag,cement bag,Binding\n" +
	"River Sand,1200,ton,sand,Aggregate\n" +
	"Red Bricks,8,piece,bricks,Masonry\n"

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	return f.text, f.err
}

type testServer struct {
	router   *gin.Engine
	catalogs *usecase.CatalogService
}

type serverOption func(*config.Config)

func withRateLimit(perIP int) serverOption {
	return func(c *config.Config) { c.RateLimit.PerIP = perIP }
}

func withMaxUpload(n int64) serverOption {
	return func(c *config.Config) { c.Server.MaxUploadBytes = n }
}

// setupTestServer wires the real services behind the router
func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"https://shop.example.com", "http://localhost:*"},
			MaxUploadBytes: 1 << 20,
		},
		Catalog:  config.CatalogConfig{CurrencySymbol: "₹"},
		Matching: config.MatchingConfig{MinConfidenceThreshold: 0.6},
		Cache:    config.CacheConfig{Type: "memory", TTL: time.Hour},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := zerolog.Nop()
	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	memCache := cache.NewMemoryCache(cache.MemoryOptions{SweepInterval: time.Minute})
	t.Cleanup(func() { memCache.Close() })

	catalogs := usecase.NewCatalogService(sheet.NewParser(), nil, recorder, logger,
		usecase.CatalogServiceConfig{CurrencySymbol: cfg.Catalog.CurrencySymbol})
	resolver := usecase.NewRequestResolver(usecase.ResolverConfig{
		MinConfidenceThreshold: cfg.Matching.MinConfidenceThreshold,
	}, logger)
	quotes := usecase.NewQuoteService(catalogs, resolver, memCache, recorder, logger,
		usecase.QuoteServiceConfig{CacheTTL: cfg.Cache.TTL})
	inbound := usecase.NewInboundService(quotes, fakeTranscriber{text: "2 ton sand"}, nil, recorder, logger)

	handler := NewHandler(catalogs, quotes, inbound, cfg.Server.MaxUploadBytes, logger)
	router := SetupRouter(cfg, handler, RouterOptions{
		Logger:   logger,
		Observer: recorder,
		Gatherer: registry,
	})

	return &testServer{router: router, catalogs: catalogs}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, field, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prices/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

func (s *testServer) upload(t *testing.T, content string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(uploadRequest(t, "file", "prices.csv", content))
}

func quoteRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		srv := setupTestServer(t)

		w := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)

		response := decode(t, w)
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "materialquote-backend", response["service"])
		assert.Equal(t, 0.0, response["catalogEntries"])
		assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		srv := setupTestServer(t)

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := srv.do(httptest.NewRequest(method, "/health", nil))
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestPriceUploadEndpoint(t *testing.T) {
	t.Run("publishes a valid sheet", func(t *testing.T) {
		srv := setupTestServer(t)

		w := srv.upload(t, priceSheet)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		response := decode(t, w)
		assert.Equal(t, 3.0, response["accepted"])
		assert.Equal(t, 0.0, response["rejected"])
		assert.Equal(t, 1.0, response["version"])
		assert.Equal(t, 3.0, response["count"])
		assert.Equal(t, 3, srv.catalogs.Current().Len())
	})

	t.Run("reports rejected rows", func(t *testing.T) {
		srv := setupTestServer(t)

		w := srv.upload(t, priceSheet+"Steel,call us,kg\n")
		require.Equal(t, http.StatusOK, w.Code)

		response := decode(t, w)
		assert.Equal(t, 3.0, response["accepted"])
		assert.Equal(t, 1.0, response["rejected"])
		rejections, ok := response["rejections"].([]any)
		require.True(t, ok)
		require.Len(t, rejections, 1)
		assert.Equal(t, "Steel", rejections[0].(map[string]any)["name"])
	})

	t.Run("keeps previous catalog when no row is valid", func(t *testing.T) {
		srv := setupTestServer(t)
		require.Equal(t, http.StatusOK, srv.upload(t, priceSheet).Code)

		w := srv.upload(t, "name,price,unit\nCement,abc,bag\n,,\n")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "catalog_empty", decode(t, w)["error"])

		assert.Equal(t, int64(1), srv.catalogs.Current().Version())
		assert.Equal(t, 3, srv.catalogs.Current().Len())
	})

	t.Run("rejects unsupported file types", func(t *testing.T) {
		srv := setupTestServer(t)

		w := srv.do(uploadRequest(t, "file", "prices.pdf", "%PDF-1.4"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "unreadable_file", decode(t, w)["error"])
	})

	t.Run("requires the file field", func(t *testing.T) {
		srv := setupTestServer(t)

		w := srv.do(uploadRequest(t, "sheet", "prices.csv", priceSheet))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decode(t, w)["error"])
	})

	t.Run("rejects files over the size limit", func(t *testing.T) {
		srv := setupTestServer(t, withMaxUpload(32))

		w := srv.upload(t, priceSheet)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, 0, srv.catalogs.Current().Len())
	})
}

func TestListPricesEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	require.Equal(t, http.StatusOK, srv.upload(t, priceSheet).Code)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/prices", nil))
	require.Equal(t, http.StatusOK, w.Code)

	response := decode(t, w)
	assert.Equal(t, 3.0, response["count"])
	assert.Equal(t, "₹", response["currency"])
	assert.Equal(t, "prices.csv", response["source"])

	items := response["items"].([]any)
	require.Len(t, items, 3)
	first := items[0].(map[string]any)
	assert.Equal(t, "Cement", first["name"])
	assert.Equal(t, 35000.0, first["price"])
	assert.Equal(t, "₹350.00", first["displayPrice"])
}

func TestQuoteEndpoint(t *testing.T) {
	t.Run("apologises before any catalog is published", func(t *testing.T) {
		srv := setupTestServer(t)

		w := srv.do(quoteRequest(`{"text":"need 5 cement bags"}`))
		require.Equal(t, http.StatusOK, w.Code)

		response := decode(t, w)
		assert.Equal(t, string(domain.OutcomeCatalogUnavailable), response["outcome"])
		assert.Contains(t, response["responseText"], "price list is not available")
	})

	t.Run("prices a text request", func(t *testing.T) {
		srv := setupTestServer(t)
		require.Equal(t, http.StatusOK, srv.upload(t, priceSheet).Code)

		w := srv.do(quoteRequest(`{"text":"need 5 cement bags"}`))
		require.Equal(t, http.StatusOK, w.Code)

		response := decode(t, w)
		assert.Equal(t, string(domain.OutcomeQuoted), response["outcome"])
		assert.Equal(t, 175000.0, response["subtotal"])
		lines := response["lineItems"].([]any)
		require.Len(t, lines, 1)
		line := lines[0].(map[string]any)
		assert.Equal(t, "Cement", line["entryName"])
		assert.Equal(t, 175000.0, line["lineTotal"])
		assert.Contains(t, response["responseText"], "₹1750.00")
	})

	t.Run("lists unmatched mentions", func(t *testing.T) {
		srv := setupTestServer(t)
		require.Equal(t, http.StatusOK, srv.upload(t, priceSheet).Code)

		w := srv.do(quoteRequest(`{"text":"xyz123 unknown item"}`))
		require.Equal(t, http.StatusOK, w.Code)

		response := decode(t, w)
		assert.Equal(t, string(domain.OutcomeNoneMatched), response["outcome"])
		assert.Len(t, response["unmatchedMentions"], 1)
		assert.Empty(t, response["lineItems"])
		assert.NotContains(t, response["responseText"], "Subtotal")
	})

	t.Run("validates the body", func(t *testing.T) {
		srv := setupTestServer(t)

		for _, body := range []string{``, `{}`, `{"text":""}`, `not json`} {
			w := srv.do(quoteRequest(body))
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})
}

func webhookRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestWhatsAppWebhook(t *testing.T) {
	t.Run("replies to text with TwiML", func(t *testing.T) {
		srv := setupTestServer(t)
		require.Equal(t, http.StatusOK, srv.upload(t, priceSheet).Code)

		w := srv.do(webhookRequest(url.Values{
			"From":     {"whatsapp:+919800000000"},
			"Body":     {"need 5 cement bags"},
			"NumMedia": {"0"},
		}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")
		assert.True(t, strings.HasPrefix(w.Body.String(), "<Response><Message>"), w.Body.String())
		assert.Contains(t, w.Body.String(), "₹1750.00")
	})

	t.Run("transcribes voice notes", func(t *testing.T) {
		srv := setupTestServer(t)
		require.Equal(t, http.StatusOK, srv.upload(t, priceSheet).Code)

		w := srv.do(webhookRequest(url.Values{
			"From":              {"whatsapp:+919800000000"},
			"NumMedia":          {"1"},
			"MediaUrl0":         {"https://media.example.com/voice.ogg"},
			"MediaContentType0": {"audio/ogg"},
		}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "River Sand")
	})

	t.Run("apologises for images when vision is not configured", func(t *testing.T) {
		srv := setupTestServer(t)
		require.Equal(t, http.StatusOK, srv.upload(t, priceSheet).Code)

		w := srv.do(webhookRequest(url.Values{
			"NumMedia":          {"1"},
			"MediaUrl0":         {"https://media.example.com/list.jpg"},
			"MediaContentType0": {"image/jpeg"},
		}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "trouble reading your image")
	})

	t.Run("reports status on GET", func(t *testing.T) {
		srv := setupTestServer(t)

		w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/whatsapp", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "active", decode(t, w)["status"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	w := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `materialquote_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("allows configured dashboard origin", func(t *testing.T) {
		srv := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		w := srv.do(req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("answers preflight for localhost wildcard", func(t *testing.T) {
		srv := setupTestServer(t)

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/quotes", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := srv.do(req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("omits headers for unknown origin", func(t *testing.T) {
		srv := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.com")
		w := srv.do(req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimitIntegration(t *testing.T) {
	srv := setupTestServer(t, withRateLimit(2))

	for i := 0; i < 2; i++ {
		w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/prices", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/prices", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// health is outside the limited group
	w = srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	srv := setupTestServer(t)
	srv.router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := srv.do(httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decode(t, w)["error"])

	// server still serves afterwards
	w = srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
