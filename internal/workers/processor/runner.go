package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"busboard/internal/domain"
	"busboard/internal/ports"
	"busboard/internal/services/duplicate"
	"busboard/internal/services/publish"
	"busboard/internal/services/quality"
	"busboard/internal/services/routetext"
)

// ErrRunInProgress is returned by RunOnce when a previous run has not
// finished yet. The scheduled loop treats it as a skip, not a failure.
var ErrRunInProgress = errors.New("processing run already in progress")

const (
	approvedMessage   = "Route added to the network."
	duplicateMessage  = "This bus route already exists in the network."
	failureMessage    = "Processing could not complete due to an internal error."
	ocrTimeoutMessage = "We could not read the schedule image. Please upload a clearer photo."
	emptyTextMessage  = "No readable text was found in the image."
	unusableMessage   = "Could not identify a bus route in the image text."
	imageSeenMessage  = "This schedule image was already processed recently."

	defaultOCRTimeout = 30 * time.Second
)

// Config carries the runner's collaborators.
type Config struct {
	Contribs   ports.ContributionRepository
	Quality    *quality.Service
	Dups       *duplicate.Service
	Parser     *routetext.Parser
	Publisher  *publish.Publisher
	OCR        ports.OCRExtractor
	Images     ports.ImageStore
	Notifier   ports.Notifier
	Logger     *slog.Logger
	OCRTimeout time.Duration
}

// Runner is the scheduled orchestrator. Each run drains PENDING route
// contributions, then PENDING image contributions, deciding a terminal
// status for each. Runs never overlap; a run that would start while another
// is in flight is skipped. One bad item never stops the rest of the batch.
type Runner struct {
	contribs   ports.ContributionRepository
	quality    *quality.Service
	dups       *duplicate.Service
	parser     *routetext.Parser
	pub        *publish.Publisher
	ocr        ports.OCRExtractor
	images     ports.ImageStore
	notify     ports.Notifier
	logger     *slog.Logger
	ocrTimeout time.Duration
	now        func() time.Time

	running atomic.Bool
}

func New(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = defaultOCRTimeout
	}
	return &Runner{
		contribs:   cfg.Contribs,
		quality:    cfg.Quality,
		dups:       cfg.Dups,
		parser:     cfg.Parser,
		pub:        cfg.Publisher,
		ocr:        cfg.OCR,
		images:     cfg.Images,
		notify:     cfg.Notifier,
		logger:     cfg.Logger,
		ocrTimeout: cfg.OCRTimeout,
		now:        time.Now,
	}
}

// Run drives RunOnce on a fixed interval until the context is cancelled.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("processor started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("processor stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				r.logger.Error("processing run failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single processing pass. It refuses to overlap with an
// in-flight run.
func (r *Runner) RunOnce(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer r.running.Store(false)

	start := r.now()

	routes, err := r.contribs.PendingRoutes(ctx)
	if err != nil {
		return fmt.Errorf("list pending routes: %w", err)
	}
	for _, c := range routes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.processRoute(ctx, c)
	}

	images, err := r.contribs.PendingImages(ctx)
	if err != nil {
		return fmt.Errorf("list pending images: %w", err)
	}
	for _, c := range images {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.processImage(ctx, c)
	}

	runsTotal.Inc()
	runDuration.Observe(time.Since(start).Seconds())
	if len(routes) > 0 || len(images) > 0 {
		r.logger.Info("processing run complete",
			"routes", len(routes), "images", len(images), "took", time.Since(start))
	}
	return nil
}

func (r *Runner) processRoute(ctx context.Context, c domain.RouteContribution) {
	status, message := r.decideRoute(ctx, c)
	r.finishRoute(ctx, c.ID, status, message)
}

// decideRoute runs the route pipeline: validation, duplicate probe, then
// canonical publication. The returned message is user facing; internal
// diagnostics are only logged.
func (r *Runner) decideRoute(ctx context.Context, c domain.RouteContribution) (domain.Status, string) {
	report := r.quality.ValidateRoute(c)
	if !report.Passing() {
		return domain.StatusRejected, report.ErrorText()
	}

	exists, err := r.dups.RouteExists(ctx, c)
	if err != nil {
		r.logger.Error("duplicate probe failed", "id", c.ID, "error", err)
		return domain.StatusFailed, failureMessage
	}
	if exists {
		return domain.StatusDuplicate, duplicateMessage
	}

	if _, err := r.pub.Publish(ctx, c); err != nil {
		if errors.Is(err, domain.ErrDuplicateRoute) {
			return domain.StatusDuplicate, duplicateMessage
		}
		r.logger.Error("canonical write failed", "id", c.ID, "error", err)
		return domain.StatusFailed, failureMessage
	}

	message := approvedMessage
	if warnings := report.WarningText(); warnings != "" {
		message += " Note: " + warnings
	}
	return domain.StatusApproved, message
}

func (r *Runner) finishRoute(ctx context.Context, id string, status domain.Status, message string) {
	updated, err := r.contribs.TransitionRoute(ctx, id, domain.StatusPending, status, message)
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			r.logger.Warn("route contribution already transitioned, skipping", "id", id)
			return
		}
		r.logger.Error("route transition failed", "id", id, "status", status, "error", err)
		return
	}
	routesProcessed.WithLabelValues(string(status)).Inc()

	switch status {
	case domain.StatusApproved:
		if nerr := r.notify.RouteApproved(ctx, updated.ID, updated.BusNumber, updated.FromName, updated.ToName); nerr != nil {
			r.logger.Warn("approval notification failed", "id", updated.ID, "error", nerr)
		}
	case domain.StatusRejected, domain.StatusDuplicate:
		if nerr := r.notify.RouteRejected(ctx, updated.ID, message); nerr != nil {
			r.logger.Warn("rejection notification failed", "id", updated.ID, "error", nerr)
		}
	case domain.StatusPending, domain.StatusProcessing, domain.StatusFailed:
		// FAILED is operator territory; submitters are not notified.
	}
}

// processImage runs the image pipeline: digest probe, OCR with a bounded
// timeout, text parsing, then the route pipeline against the derived
// contribution. The image's final status mirrors the derived route's.
func (r *Runner) processImage(ctx context.Context, c domain.ImageContribution) {
	seen, err := r.dups.SeenImageDigest(ctx, c.Digest)
	if err != nil {
		r.logger.Error("digest probe failed", "id", c.ID, "error", err)
		r.finishImage(ctx, c.ID, domain.StatusFailed, failureMessage)
		return
	}
	if seen {
		r.finishImage(ctx, c.ID, domain.StatusDuplicate, imageSeenMessage)
		return
	}

	image, err := r.images.Load(ctx, c.ImagePath)
	if err != nil {
		r.logger.Error("image load failed", "id", c.ID, "path", c.ImagePath, "error", err)
		r.finishImage(ctx, c.ID, domain.StatusFailed, failureMessage)
		return
	}

	octx, cancel := context.WithTimeout(ctx, r.ocrTimeout)
	extraction, err := r.ocr.ExtractText(octx, image)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.finishImage(ctx, c.ID, domain.StatusRejected, ocrTimeoutMessage)
			return
		}
		r.logger.Error("ocr extraction failed", "id", c.ID, "error", err)
		r.finishImage(ctx, c.ID, domain.StatusFailed, failureMessage)
		return
	}

	text := strings.TrimSpace(extraction.Text)
	if text == "" {
		r.finishImage(ctx, c.ID, domain.StatusRejected, emptyTextMessage)
		return
	}

	parsed := r.parser.Parse(text)
	if !parsed.Usable() {
		if serr := r.contribs.SetImageExtraction(ctx, c.ID, text, ""); serr != nil {
			r.logger.Warn("storing extraction failed", "id", c.ID, "error", serr)
		}
		r.finishImage(ctx, c.ID, domain.StatusRejected, unusableMessage)
		return
	}

	derived, err := r.contribs.SaveRoute(ctx, r.deriveRoute(c, parsed))
	if err != nil {
		r.logger.Error("saving derived route failed", "id", c.ID, "error", err)
		r.finishImage(ctx, c.ID, domain.StatusFailed, failureMessage)
		return
	}
	if serr := r.contribs.SetImageExtraction(ctx, c.ID, text, derived.ID); serr != nil {
		r.logger.Warn("storing extraction failed", "id", c.ID, "error", serr)
	}

	status, message := r.decideRoute(ctx, derived)
	r.finishRoute(ctx, derived.ID, status, message)
	r.finishImage(ctx, c.ID, status, message)
}

func (r *Runner) finishImage(ctx context.Context, id string, status domain.Status, message string) {
	updated, err := r.contribs.TransitionImage(ctx, id, domain.StatusPending, status, message)
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			r.logger.Warn("image contribution already transitioned, skipping", "id", id)
			return
		}
		r.logger.Error("image transition failed", "id", id, "status", status, "error", err)
		return
	}
	imagesProcessed.WithLabelValues(string(status)).Inc()

	switch status {
	case domain.StatusApproved:
		if nerr := r.notify.ImageApproved(ctx, updated.ID); nerr != nil {
			r.logger.Warn("approval notification failed", "id", updated.ID, "error", nerr)
		}
	case domain.StatusRejected, domain.StatusDuplicate:
		if nerr := r.notify.ImageRejected(ctx, updated.ID, message); nerr != nil {
			r.logger.Warn("rejection notification failed", "id", updated.ID, "error", nerr)
		}
	case domain.StatusPending, domain.StatusProcessing, domain.StatusFailed:
	}
}

// deriveRoute builds a route contribution from parsed schedule text. The
// first extracted time becomes the departure and the last the arrival.
func (r *Runner) deriveRoute(img domain.ImageContribution, parsed routetext.RouteData) domain.RouteContribution {
	c := domain.RouteContribution{
		ID:             uuid.NewString(),
		SubmittedBy:    img.SubmittedBy,
		BusNumber:      parsed.BusNumber,
		FromName:       parsed.FromLocation,
		ToName:         parsed.ToLocation,
		Status:         domain.StatusPending,
		StatusMessage:  "Derived from a schedule image.",
		SubmissionDate: r.now(),
		SourceImageID:  img.ID,
	}
	if len(parsed.Timings) > 0 {
		c.DepartureTime = parsed.Timings[0]
	}
	if len(parsed.Timings) > 1 {
		c.ArrivalTime = parsed.Timings[len(parsed.Timings)-1]
	}
	for i, name := range parsed.Stops {
		c.Stops = append(c.Stops, domain.StopContribution{Name: name, Order: i + 1})
	}
	return c
}
