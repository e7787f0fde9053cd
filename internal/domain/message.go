package domain

import "strings"

// InboundMessage is a customer message delivered by the messaging gateway
type InboundMessage struct {
	From             string `json:"from" form:"From"`
	Body             string `json:"body" form:"Body"`
	NumMedia         int    `json:"numMedia" form:"NumMedia"`
	MediaURL         string `json:"mediaUrl,omitempty" form:"MediaUrl0"`
	MediaContentType string `json:"mediaContentType,omitempty" form:"MediaContentType0"`
}

// MediaKind is the branch an inbound message takes
type MediaKind string

const (
	MediaNone     MediaKind = "none"
	MediaAudio    MediaKind = "audio"
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
)

// Kind classifies the attached media by content type
func (m InboundMessage) Kind() MediaKind {
	if m.NumMedia <= 0 || m.MediaContentType == "" {
		return MediaNone
	}
	ct := strings.ToLower(m.MediaContentType)
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return MediaAudio
	case strings.HasPrefix(ct, "image/"):
		return MediaImage
	case strings.Contains(ct, "pdf"), strings.Contains(ct, "document"):
		return MediaDocument
	}
	return MediaNone
}
