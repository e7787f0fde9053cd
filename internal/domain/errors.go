package domain

import "errors"

var (
	// ErrCatalogEmpty is returned when an upload yields no valid rows; the previous catalog stays active
	ErrCatalogEmpty = errors.New("catalog upload contained no valid rows")

	// ErrRowRejected marks a single upload row that failed validation
	ErrRowRejected = errors.New("row rejected")

	// ErrCatalogNotFound is returned when no persisted catalog exists
	ErrCatalogNotFound = errors.New("no persisted catalog")

	// ErrUnsupportedFormat is returned when an uploaded file type is not recognized
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCorruptFile is returned when an uploaded file cannot be read
	ErrCorruptFile = errors.New("file is corrupt or unreadable")

	// ErrAmountTooLarge is returned when a money amount does not fit in int64 minor units
	ErrAmountTooLarge = errors.New("amount too large")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrMediaUnavailable is returned when media cannot be downloaded from the gateway
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrTranscriptionFailed is returned when a voice note cannot be transcribed
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrExtractionFailed is returned when no text can be read from an image
	ErrExtractionFailed = errors.New("image text extraction failed")

	// ErrCollaboratorDisabled is returned when a speech or vision backend is not configured
	ErrCollaboratorDisabled = errors.New("collaborator not configured")
)
