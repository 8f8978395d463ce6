package ports

import "context"

// Extraction is the output of an OCR pass over an image.
type Extraction struct {
	Text       string
	Confidence float64
}

// OCRExtractor converts image bytes into text. Implementations are opaque
// and swappable; callers bound the call with a context deadline.
type OCRExtractor interface {
	ExtractText(ctx context.Context, image []byte) (Extraction, error)
}

// ImageStore persists uploaded schedule images outside the database.
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) (path string, err error)
	Load(ctx context.Context, path string) ([]byte, error)
}

// Notifier emits fire-and-forget notifications on terminal transitions.
// Errors are logged by callers and never roll back a transition.
type Notifier interface {
	RouteApproved(ctx context.Context, id, busNumber, from, to string) error
	RouteRejected(ctx context.Context, id, reason string) error
	ImageApproved(ctx context.Context, id string) error
	ImageRejected(ctx context.Context, id, reason string) error
}
