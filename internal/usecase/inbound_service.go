package usecase

import (
	"context"
	"strings"

	"github.com/materialquote/backend/internal/domain"
	"github.com/rs/zerolog"
)

// Replies for messages that never reach the resolver
const (
	msgVoiceFailed = "Sorry, I had trouble processing your voice note. " +
		"Please try sending a text message instead."
	msgImageFailed = "Sorry, I had trouble reading your image. " +
		"Please try sending a clearer photo or text message."
	msgDocumentSent = "I see you sent a document. Please send the material list as an image " +
		"or type it as a text message for faster processing."
)

// InboundReply is the outcome of handling one gateway message
type InboundReply struct {
	Text  string
	Quote *domain.Quote // nil when the message never reached the resolver
}

// InboundService turns gateway messages (text, voice note, photo) into reply text
type InboundService struct {
	quotes      *QuoteService
	transcriber domain.Transcriber   // nil when speech is not configured
	extractor   domain.TextExtractor // nil when vision is not configured
	metrics     Metrics
	logger      zerolog.Logger
}

// NewInboundService creates a new inbound message service
func NewInboundService(
	quotes *QuoteService,
	transcriber domain.Transcriber,
	extractor domain.TextExtractor,
	metrics Metrics,
	logger zerolog.Logger,
) *InboundService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &InboundService{
		quotes:      quotes,
		transcriber: transcriber,
		extractor:   extractor,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleMessage always yields a natural-language reply; collaborator failures
// become apology texts rather than errors.
func (s *InboundService) HandleMessage(ctx context.Context, msg domain.InboundMessage) InboundReply {
	kind := msg.Kind()
	logger := s.logger.With().Str("from", msg.From).Str("media", string(kind)).Logger()

	if s.quotes.Catalog().IsEmpty() {
		logger.Warn().Msg("message received with no catalog published")
		return InboundReply{Text: msgCatalogUnavailable}
	}

	text := msg.Body

	switch kind {
	case domain.MediaAudio:
		transcript, err := s.transcribe(ctx, msg.MediaURL)
		s.metrics.ObserveInbound(kind, err == nil)
		if err != nil {
			logger.Error().Err(err).Msg("voice note transcription failed")
			return InboundReply{Text: msgVoiceFailed}
		}
		logger.Debug().Str("transcript", transcript).Msg("voice note transcribed")
		text = transcript

	case domain.MediaImage:
		extracted, err := s.extract(ctx, msg.MediaURL)
		s.metrics.ObserveInbound(kind, err == nil)
		if err != nil {
			logger.Error().Err(err).Msg("image text extraction failed")
			return InboundReply{Text: msgImageFailed}
		}
		logger.Debug().Str("extracted", extracted).Msg("image text extracted")
		text = extracted

	case domain.MediaDocument:
		s.metrics.ObserveInbound(kind, false)
		return InboundReply{Text: msgDocumentSent}

	default:
		s.metrics.ObserveInbound(kind, true)
	}

	if strings.TrimSpace(text) == "" {
		return InboundReply{Text: msgSendYourList}
	}

	quote := s.quotes.Quote(ctx, text)
	return InboundReply{Text: quote.ResponseText, Quote: quote}
}

func (s *InboundService) transcribe(ctx context.Context, mediaURL string) (string, error) {
	if s.transcriber == nil {
		return "", domain.ErrCollaboratorDisabled
	}
	return s.transcriber.Transcribe(ctx, mediaURL)
}

func (s *InboundService) extract(ctx context.Context, mediaURL string) (string, error) {
	if s.extractor == nil {
		return "", domain.ErrCollaboratorDisabled
	}
	return s.extractor.ExtractText(ctx, mediaURL)
}
