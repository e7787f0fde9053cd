package http

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/materialquote/backend/internal/domain"
	"github.com/materialquote/backend/internal/usecase"
	"github.com/rs/zerolog"
)

const serviceVersion = "1.0.0"

// CatalogManager publishes and serves the shop's price list
type CatalogManager interface {
	Current() *domain.Catalog
	Upload(ctx context.Context, data []byte, fileName string) (*usecase.NormalizeResult, error)
}

// Quoter resolves free-text material requests
type Quoter interface {
	Quote(ctx context.Context, text string) *domain.Quote
}

// MessageHandler answers messaging gateway webhooks
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) usecase.InboundReply
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalogs       CatalogManager
	quotes         Quoter
	messages       MessageHandler
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalogs CatalogManager, quotes Quoter, messages MessageHandler, maxUploadBytes int64, logger zerolog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		catalogs:       catalogs,
		quotes:         quotes,
		messages:       messages,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	catalog := h.catalogs.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "materialquote-backend",
		"version":        serviceVersion,
		"catalogVersion": catalog.Version(),
		"catalogEntries": catalog.Len(),
	})
}

type priceItem struct {
	domain.CatalogEntry
	DisplayPrice string `json:"displayPrice"`
}

// ListPrices returns the active catalog
func (h *Handler) ListPrices(c *gin.Context) {
	catalog := h.catalogs.Current()

	items := make([]priceItem, 0, catalog.Len())
	for _, e := range catalog.Entries() {
		items = append(items, priceItem{
			CatalogEntry: e,
			DisplayPrice: domain.FormatMoney(catalog.Currency(), e.Price),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"version":   catalog.Version(),
		"count":     catalog.Len(),
		"currency":  catalog.Currency(),
		"source":    catalog.Source(),
		"updatedAt": catalog.CreatedAt(),
		"items":     items,
	})
}

// UploadPrices replaces the catalog with an uploaded sheet (multipart field "file")
func (h *Handler) UploadPrices(c *gin.Context) {
	// multipart framing needs some room beyond the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+64<<10)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Upload the price list as multipart form field \"file\"",
		})
		return
	}
	if header.Size > h.maxUploadBytes {
		h.tooLarge(c)
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Could not read uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Could not read uploaded file"})
		return
	}

	result, err := h.catalogs.Upload(c.Request.Context(), data, header.Filename)
	switch {
	case err == nil:
		catalog := result.Catalog
		c.JSON(http.StatusOK, gin.H{
			"accepted":   result.Accepted,
			"rejected":   result.Rejected,
			"replaced":   result.Replaced,
			"rejections": result.Rejections,
			"version":    catalog.Version(),
			"count":      catalog.Len(),
		})

	case errors.Is(err, domain.ErrCatalogEmpty):
		body := gin.H{
			"error":   "catalog_empty",
			"message": "No valid rows found; the previous price list is still active",
		}
		if result != nil {
			body["rejected"] = result.Rejected
			body["rejections"] = result.Rejections
		}
		c.JSON(http.StatusUnprocessableEntity, body)

	case errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrCorruptFile):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unreadable_file",
			"message": err.Error(),
		})

	default:
		h.logger.Error().Err(err).Str("file", header.Filename).Msg("catalog upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to publish price list",
		})
	}
}

func (h *Handler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error":   "file_too_large",
		"message": "Price list exceeds the upload size limit",
		"limit":   h.maxUploadBytes,
	})
}

// QuoteRequest is the body of POST /api/v1/quotes
type QuoteRequest struct {
	Text string `json:"text" binding:"required"`
}

// CreateQuote resolves a free-text request into a priced quote
func (h *Handler) CreateQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be JSON with a non-empty \"text\" field",
		})
		return
	}

	c.JSON(http.StatusOK, h.quotes.Quote(c.Request.Context(), req.Text))
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// WhatsAppWebhook answers a messaging gateway webhook with a TwiML reply
func (h *Handler) WhatsAppWebhook(c *gin.Context) {
	var msg domain.InboundMessage
	if err := c.ShouldBind(&msg); err != nil {
		h.logger.Warn().Err(err).Msg("malformed webhook form")
	}

	reply := h.messages.HandleMessage(c.Request.Context(), msg)

	c.Header("Content-Type", "text/xml; charset=utf-8")
	c.XML(http.StatusOK, twimlResponse{Message: reply.Text})
}

// WhatsAppStatus lets the gateway verify the webhook URL
func (h *Handler) WhatsAppStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "active",
		"catalogVersion": h.catalogs.Current().Version(),
	})
}
