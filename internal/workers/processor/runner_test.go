package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busboard/internal/adapters/memory"
	"busboard/internal/domain"
	"busboard/internal/ports"
	"busboard/internal/services/duplicate"
	"busboard/internal/services/publish"
	"busboard/internal/services/quality"
	"busboard/internal/services/routetext"
)

type fakeOCR struct {
	text string
	err  error
	slow bool
}

func (f *fakeOCR) ExtractText(ctx context.Context, image []byte) (ports.Extraction, error) {
	if f.slow {
		<-ctx.Done()
		return ports.Extraction{}, ctx.Err()
	}
	if f.err != nil {
		return ports.Extraction{}, f.err
	}
	return ports.Extraction{Text: f.text, Confidence: 0.9}, nil
}

type fakeImages struct {
	files map[string][]byte
}

func (f *fakeImages) Save(ctx context.Context, name string, data []byte) (string, error) {
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[name] = data
	return name, nil
}

func (f *fakeImages) Load(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such image")
	}
	return data, nil
}

type fakeNotifier struct {
	approvals  []string
	rejections []string
}

func (f *fakeNotifier) RouteApproved(ctx context.Context, id, busNumber, from, to string) error {
	f.approvals = append(f.approvals, id)
	return nil
}

func (f *fakeNotifier) RouteRejected(ctx context.Context, id, reason string) error {
	f.rejections = append(f.rejections, id)
	return nil
}

func (f *fakeNotifier) ImageApproved(ctx context.Context, id string) error {
	f.approvals = append(f.approvals, id)
	return nil
}

func (f *fakeNotifier) ImageRejected(ctx context.Context, id, reason string) error {
	f.rejections = append(f.rejections, id)
	return nil
}

type fixture struct {
	store    *memory.Store
	images   *fakeImages
	notifier *fakeNotifier
	ocr      *fakeOCR
	runner   *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	images := &fakeImages{}
	notifier := &fakeNotifier{}
	ocr := &fakeOCR{}
	runner := New(Config{
		Contribs:   store,
		Quality:    quality.New(quality.DefaultRules()),
		Dups:       duplicate.New(store, store, 0),
		Parser:     routetext.New(),
		Publisher:  publish.New(store),
		OCR:        ocr,
		Images:     images,
		Notifier:   notifier,
		OCRTimeout: 200 * time.Millisecond,
	})
	return &fixture{store: store, images: images, notifier: notifier, ocr: ocr, runner: runner}
}

func ptr(v float64) *float64 { return &v }

func validRoute() domain.RouteContribution {
	return domain.RouteContribution{
		SubmittedBy:   "user-1",
		BusNumber:     "27D",
		FromName:      "Sivakasi",
		FromLatitude:  ptr(9.4533),
		FromLongitude: ptr(77.8024),
		ToName:        "Madurai",
		ToLatitude:    ptr(9.9252),
		ToLongitude:   ptr(78.1198),
		DepartureTime: "06:00",
		ArrivalTime:   "08:30",
		Status:        domain.StatusPending,
	}
}

func TestRunOnceApprovesValidRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.store.SaveRoute(ctx, validRoute())
	require.NoError(t, err)

	require.NoError(t, f.runner.RunOnce(ctx))

	got, err := f.store.RouteByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.NotNil(t, got.ProcessedDate)
	assert.Equal(t, 1, f.store.CanonicalRouteCount())
	assert.Contains(t, f.notifier.approvals, saved.ID)
}

func TestRunOnceSecondIdenticalRouteBecomesDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.SaveRoute(ctx, validRoute())
	require.NoError(t, err)
	require.NoError(t, f.runner.RunOnce(ctx))

	second, err := f.store.SaveRoute(ctx, validRoute())
	require.NoError(t, err)
	require.NoError(t, f.runner.RunOnce(ctx))

	gotFirst, err := f.store.RouteByID(ctx, first.ID)
	require.NoError(t, err)
	gotSecond, err := f.store.RouteByID(ctx, second.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, gotFirst.Status)
	assert.Equal(t, domain.StatusDuplicate, gotSecond.Status)
	assert.Equal(t, 1, f.store.CanonicalRouteCount())
}

func TestRunOnceRejectsInvalidRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := validRoute()
	bad.ToName = "Sivakasi"
	bad.ToLatitude = bad.FromLatitude
	bad.ToLongitude = bad.FromLongitude
	saved, err := f.store.SaveRoute(ctx, bad)
	require.NoError(t, err)

	require.NoError(t, f.runner.RunOnce(ctx))

	got, err := f.store.RouteByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.Contains(t, got.StatusMessage, "same location")
	assert.Zero(t, f.store.CanonicalRouteCount())
	assert.Contains(t, f.notifier.rejections, saved.ID)
}

func TestRunOnceImagePipelineApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ocr.text = "Bus 27D Sivakasi -> Madurai 6:00 AM 8:30 AM"

	path, err := f.images.Save(ctx, "img-1", []byte("jpeg bytes"))
	require.NoError(t, err)
	img, err := f.store.SaveImage(ctx, domain.ImageContribution{
		SubmittedBy: "user-2",
		ImagePath:   path,
		Digest:      "digest-1",
		Status:      domain.StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, f.runner.RunOnce(ctx))

	gotImg, err := f.store.ImageByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, gotImg.Status)
	assert.Equal(t, f.ocr.text, gotImg.ExtractedText)
	require.NotEmpty(t, gotImg.DerivedRouteID)

	derived, err := f.store.RouteByID(ctx, gotImg.DerivedRouteID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, derived.Status)
	assert.Equal(t, "27D", derived.BusNumber)
	assert.Equal(t, "Sivakasi", derived.FromName)
	assert.Equal(t, "Madurai", derived.ToName)
	assert.Equal(t, "06:00", derived.DepartureTime)
	assert.Equal(t, "08:30", derived.ArrivalTime)
	assert.Equal(t, img.ID, derived.SourceImageID)
	assert.Equal(t, 1, f.store.CanonicalRouteCount())
}

func TestRunOnceEmptyOCRTextRejectsWithoutRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ocr.text = "   "

	path, err := f.images.Save(ctx, "img-1", []byte("jpeg bytes"))
	require.NoError(t, err)
	img, err := f.store.SaveImage(ctx, domain.ImageContribution{
		SubmittedBy: "user-2",
		ImagePath:   path,
		Digest:      "digest-1",
		Status:      domain.StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, f.runner.RunOnce(ctx))

	gotImg, err := f.store.ImageByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, gotImg.Status)
	assert.Empty(t, gotImg.DerivedRouteID)

	pending, err := f.store.PendingRoutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunOnceOCRTimeoutRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ocr.slow = true

	path, err := f.images.Save(ctx, "img-1", []byte("jpeg bytes"))
	require.NoError(t, err)
	img, err := f.store.SaveImage(ctx, domain.ImageContribution{
		SubmittedBy: "user-2",
		ImagePath:   path,
		Digest:      "digest-1",
		Status:      domain.StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, f.runner.RunOnce(ctx))

	gotImg, err := f.store.ImageByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, gotImg.Status)
	assert.Equal(t, ocrTimeoutMessage, gotImg.StatusMessage)
}

func TestRunOnceOCRFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ocr.err = errors.New("ocr service unreachable")

	path, err := f.images.Save(ctx, "img-1", []byte("jpeg bytes"))
	require.NoError(t, err)
	img, err := f.store.SaveImage(ctx, domain.ImageContribution{
		SubmittedBy: "user-2",
		ImagePath:   path,
		Digest:      "digest-1",
		Status:      domain.StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, f.runner.RunOnce(ctx))

	gotImg, err := f.store.ImageByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, gotImg.Status)
	assert.Equal(t, failureMessage, gotImg.StatusMessage)
}

func TestRunOnceRefusesToOverlap(t *testing.T) {
	f := newFixture(t)

	f.runner.running.Store(true)
	err := f.runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	f.runner.running.Store(false)
	assert.NoError(t, f.runner.RunOnce(context.Background()))
}
