package ocr

import (
	"context"
	"errors"
	"log/slog"

	"busboard/internal/ports"
)

// ErrUnavailable is returned when no OCR capability is configured at all.
var ErrUnavailable = errors.New("no ocr extractor available")

// Fallback tries the primary extractor and falls back to the secondary when
// the primary fails for a reason other than the caller's deadline.
type Fallback struct {
	primary   ports.OCRExtractor
	secondary ports.OCRExtractor
	logger    *slog.Logger
}

var _ ports.OCRExtractor = (*Fallback)(nil)

func NewFallback(primary, secondary ports.OCRExtractor, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) ExtractText(ctx context.Context, image []byte) (ports.Extraction, error) {
	extraction, err := f.primary.ExtractText(ctx, image)
	if err == nil {
		return extraction, nil
	}
	if ctx.Err() != nil {
		return ports.Extraction{}, err
	}
	f.logger.Warn("primary ocr failed, using fallback", "error", err)
	return f.secondary.ExtractText(ctx, image)
}

// Select builds the extractor for the deployment: remote service with a
// local tesseract fallback when both exist, whichever one is present
// otherwise.
func Select(serviceURL string, logger *slog.Logger) ports.OCRExtractor {
	remote := serviceURL != ""
	local := Available()
	switch {
	case remote && local:
		return NewFallback(NewClient(serviceURL), NewTesseract(), logger)
	case remote:
		return NewClient(serviceURL)
	case local:
		return NewTesseract()
	default:
		return unavailable{}
	}
}

type unavailable struct{}

func (unavailable) ExtractText(ctx context.Context, image []byte) (ports.Extraction, error) {
	return ports.Extraction{}, ErrUnavailable
}
